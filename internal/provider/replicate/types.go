package replicate

// predictionInput mirrors the input block of a flux-schnell prediction request.
type predictionInput struct {
	Prompt           string `json:"prompt"`
	AspectRatio      string `json:"aspect_ratio"`
	OutputFormat     string `json:"output_format"`
	OutputQuality    int    `json:"output_quality"`
	SafetyTolerance  int    `json:"safety_tolerance"`
	PromptUpsampling bool   `json:"prompt_upsampling"`
}

// createPredictionRequest is the POST /predictions payload.
type createPredictionRequest struct {
	Model string          `json:"model"`
	Input predictionInput `json:"input"`
}

// predictionResponse is the shape Replicate returns for both creation and
// status lookups. Output is a list of delivery URLs once the prediction
// succeeds.
type predictionResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Output      []string `json:"output"`
	Error       *string  `json:"error"`
	DataRemoved bool     `json:"data_removed"`
}
