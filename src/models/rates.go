package models

// HistoricalRates is the schema of the historical EUR rate file bundled with
// the application. One observation is the EUR value of one unit of a symbol
// on a given day.
type HistoricalRates struct {
	Root struct {
		Obs []struct {
			TimePeriod string `json:"_TIME_PERIOD"`
			ObsValue   string `json:"_OBS_VALUE"`
			Symbol     string `json:"_SYMBOL"`
		} `json:"Obs"`
	} `json:"root"`
}
