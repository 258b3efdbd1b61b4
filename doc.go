/*
Package streamjoin joins two sequences on a derived key.

The right side is drained into an in-memory key index on the first pull; the
left side is then streamed one element at a time, so outputs are produced
lazily and in left order. Three join types are supported:

	Inner      one output per matching pair (Combine) or per matched left element (Group)
	LeftOuter  one group per left element, matched or not
	FullOuter  LeftOuter followed by one group per unmatched right key

Outer joins require a grouper. A grouper receives a nil left element for the
groups of right elements no left element matched.

	rows, err := streamjoin.Group(ctx, streamjoin.Spec[Customer, Order, int]{
		Type:     streamjoin.LeftOuter,
		Left:     sources.Slice(customers),
		LeftKey:  streamjoin.KeyOf(func(c Customer) int { return c.ID }),
		Right:    sources.Slice(orders),
		RightKey: streamjoin.KeyOf(func(o Order) int { return o.CustomerID }),
	}, func(c *Customer, orders iter.Seq[Order]) (Summary, error) {
		...
	})

An evaluation can be consumed once.
*/
package streamjoin
