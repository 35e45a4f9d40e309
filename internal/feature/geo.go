package feature

// Geography tables lifted from the fraud-rate analysis of the training set.
// States and countries share one namespace because the feed puts foreign
// country names in the merchant-state column.

var highRiskStates = map[string]bool{
	"Italy": true,
	"OH":    true,
}

var primaryStates = map[string]bool{
	"CA": true,
	"NY": true,
}

var internationalStates = map[string]bool{
	"Mexico":      true,
	"Italy":       true,
	"Poland":      true,
	"Philippines": true,
	"Peru":        true,
	"Pakistan":    true,
	"China":       true,
	"Japan":       true,
	"Canada":      true,
	"UK":          true,
}
