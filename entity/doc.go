/*
Package entity defines the addressing and versioning model of persisted entities.

A Key names a record by kind and either a string name or a numeric id, with an
optional parent key. Keys without a name or id are incomplete; the backend
assigns an id on the first put.

Entities embed Identity:

	type Order struct {
	    entity.Identity `json:"-"`
	    Customer *entity.Ref `json:"customer"`
	    Total    float64     `json:"total"`
	}

	func NewOrder() *Order {
	    return &Order{Identity: entity.NewIdentity("Order", nil)}
	}

	func (o *Order) References() []entity.Edge {
	    return []entity.Edge{{Name: "customer", Ref: o.Customer}}
	}

Ref is an explicit handle to a related entity. Its JSON form is the encoded key
of the target, so an entity's properties carry resolved references only.
*/
package entity
