package platform

// Wire types for the gateway REST API.

type channelResponse struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	SubscriberCount int    `json:"subscriber_count"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

type historyItem struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	MediaKind   string `json:"media_kind,omitempty"`
	PublishedAt string `json:"published_at"`
}

type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
