package domain

// MediaFormat describes one downloadable format reported by the extraction
// engine. Numeric fields are pointers so that "unknown" survives the round
// trip to JSON as null instead of zero.
type MediaFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Resolution     string  `json:"resolution"`
	Filesize       *int64  `json:"filesize"`
	FilesizeApprox *int64  `json:"filesize_approx"`
	FormatNote     string  `json:"format_note"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Width          *int    `json:"width"`
	Height         *int    `json:"height"`
	FPS            *float64 `json:"fps"`
}

// VideoInfo is the metadata returned for an info request, with formats
// sorted descending by (height, filesize).
type VideoInfo struct {
	Title      string        `json:"title"`
	Thumbnail  string        `json:"thumbnail"`
	Duration   float64       `json:"duration"`
	Formats    []MediaFormat `json:"formats"`
	Platform   string        `json:"platform"`
	ViewCount  int64         `json:"view_count"`
	UploadDate string        `json:"upload_date,omitempty"`
}
