package matching

// Per-attribute distance weights. A matcher's raw distance is multiplied by
// its attribute weight before summing across the registry. Higher weights
// push an attribute's mismatch further away in closest-match ranking.
const (
	// WeightScheme is low: scheme mismatches are rarely the interesting part.
	WeightScheme = 1

	// WeightMethod ranks method mismatches above scheme but below path.
	WeightMethod = 3

	// WeightHost and WeightPort cover the authority part of the request.
	WeightHost = 2
	WeightPort = 2

	// WeightPath dominates: a wrong path is almost always the real miss.
	WeightPath = 5

	// WeightQuery, WeightHeader, and WeightCookie are per closest-pair.
	WeightQuery  = 3
	WeightHeader = 2
	WeightCookie = 2

	// WeightBody applies to raw and form-encoded body mismatches.
	WeightBody = 4
	WeightForm = 3

	// WeightJSON applies to structural JSON mismatches.
	WeightJSON = 4
)

// Flat raw distances for constraints that have no meaningful edit distance.
const (
	// regexMissDistance is charged when a regex constraint fails.
	regexMissDistance = 10

	// predicateMissDistance is charged per failing user predicate.
	predicateMissDistance = 10

	// jsonMissCap bounds the distance of a structural JSON mismatch.
	jsonMissCap = 200
)

// levLimit bounds every Levenshtein computation; anything farther than this
// is reported as exactly levLimit. Keeps pathological bodies cheap.
const levLimit = 1000
