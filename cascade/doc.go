/*
Package cascade persists composite entity graphs.

An entity exposes its outgoing references by implementing entity.Referrer.
Engine.Save walks those edges from a root, persists every unidentified target
before the entity that points at it and bumps each entity's version once per
confirmed put:

	engine := cascade.New(store, cascade.WithLogger(logger))
	err := engine.Save(ctx, order, cascade.Ignore("auditTrail"))

A graph in which unidentified entities reference each other in a cycle is
rejected with errors.ErrCycle before anything is written.
*/
package cascade
