package embedder

// embedRequest asks the worker to embed a batch of texts.
type embedRequest struct {
	Texts []string `json:"texts"`
}

// pingRequest is the health probe.
type pingRequest struct {
	Ping bool `json:"ping"`
}

// response covers every reply shape; exactly one group of fields is set.
type response struct {
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Dimensions int         `json:"dimensions,omitempty"`
	Pong       bool        `json:"pong,omitempty"`
	Error      string      `json:"error,omitempty"`
}
