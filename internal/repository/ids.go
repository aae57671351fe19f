package repository

import "github.com/oklog/ulid/v2"

// Entity IDs are ULIDs with a short type prefix, sortable by creation time.

func newSubscriptionID() string { return "sub_" + ulid.Make().String() }
func newMemoCardID() string     { return "mc_" + ulid.Make().String() }
func newWordCardID() string     { return "wc_" + ulid.Make().String() }
func newSeriesID() string       { return "sr_" + ulid.Make().String() }
func newAuditID() string        { return "ua_" + ulid.Make().String() }
