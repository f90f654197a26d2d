package server

type topicRequest struct {
	Topic string `json:"topic"`
}

type textRequest struct {
	Text string `json:"text"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type generateResponse struct {
	DownloadURL string `json:"download_url"`
	PreviewURL  string `json:"preview_url"`
	RunID       string `json:"run_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}
