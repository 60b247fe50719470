package entity

// WebhookResult summarizes one delivery; it is logged, never returned to the platform.
type WebhookResult struct {
	Received   int `json:"received"`
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}
