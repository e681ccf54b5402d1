/*
Package registry holds the startup-time tables the store needs to turn records
back into entities.

Kind Registry:
Maps kind tags to factory functions, replacing reflection-based construction:

	reg := registry.New()
	registry.Register(reg, "User", func() *User { return &User{} })

Index Maps:
Associate kinds with extra stored attributes built from property templates:

	User:
	  GSI1PK: "EMAIL#{Email}"
	  GSI1SK: "USER"

Index maps are loaded from YAML with LoadIndexMapFile and consumed by the
DynamoDB backend. Both tables are safe for concurrent use and should be
populated during initialization.
*/
package registry
