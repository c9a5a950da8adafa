// Package orm wraps the mORMot REST ORM endpoints of a root model.
//
// Every call is a signed request through a logged-in [goMormot.Client]:
//
//	GET    root/Table?select=..&where=..        Select, SelectAll
//	GET    root/Table/ID                        Get
//	POST   root/Table                           Insert (new ID from Location)
//	PUT    root/Table/ID                        Update
//	PUT    root/Table?setname=..&set=..&wherename=..&where=..   UpdateWhere
//	DELETE root/Table/ID                        Delete
//	DELETE root/Table?where=..                  DeleteWhere
//
// # What this package must NOT do
//
//   - Hold session state. Signing and login belong to the client.
//   - Interpret where clauses. They are sent to the server verbatim.
package orm
