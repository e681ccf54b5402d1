/*
Package criteria is the backend-independent query model.

An Expression is a closed sum type of predicate nodes (SimpleExpr, BetweenExpr,
InExpr, IDInExpr, NameInExpr, LikeExpr, NullExpr, LogicalExpr, ReferenceIDExpr,
ReferenceNameExpr). A Criteria collects expressions, order rules, a parent
scope and a limit/offset window for one entity kind:

	c := criteria.New[*Order]("Order").
	    Where(
	        criteria.Between("total", 10, 100, criteria.Soft, criteria.Hard),
	        criteria.AnyOf(criteria.Eq("status", "open"), criteria.IsNull("status")),
	    ).
	    OrderBy("total", criteria.Desc).
	    Limit(20)

Each backend supplies a Builder[Q] that lowers a Spec into its native query
type Q, usually by implementing ExpressionBuilder[F] for its fragment type F
and calling Accept for every node.
*/
package criteria
