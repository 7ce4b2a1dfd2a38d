package domain

type PolicyInput struct {
	Subject string `json:"subject"`
	Channel string `json:"channel"`
	Route   string `json:"route"`
}

type PolicyDenial struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PolicyResult struct {
	Allow bool           `json:"allow"`
	Deny  []PolicyDenial `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string
	BundleHash string
	Result     PolicyResult
}
