// Package bunmapper implements relation.Mapper on top of uptrace/bun.
//
// Models are plain bun models. Tag the alias with the table name so that
// conditions written as "posts.title = ?" resolve:
//
//	type Post struct {
//		bun.BaseModel `bun:"table:posts,alias:posts"`
//		ID     int64   `bun:"id,pk,autoincrement"`
//		Title  string  `bun:"title"`
//		Author *Author `bun:"rel:belongs-to,join:author_id=id"`
//	}
//
//	entity := bunmapper.Describe[Post](db)
//	posts := relation.New(entity, bunmapper.New[Post](db, entity))
//
// Association names given to Preload, EagerLoad and Includes are bun
// relation field names ("Author"). JoinAssociations uses the join SQL
// registered on the entity.
package bunmapper
