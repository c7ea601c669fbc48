package dispatch

import "github.com/hirosystems/chainhook/internal/predicate"

func testPredicateFor(uuid string) predicate.Predicate {
	return predicate.Predicate{UUID: uuid, Name: "test-" + uuid}
}
