package workflow

// FormID selects the n8n workflow branch that handles a webhook.
type FormID string

const (
	FormChat     FormID = "chat"
	FormResearch FormID = "research"
	FormEmail    FormID = "email"
)

// Payload is a webhook body understood by the workflow engine.
type Payload interface {
	Form() FormID
}

type ResearchPayload struct {
	FormID        FormID `json:"form-id"`
	ResearchID    string `json:"research_id"`
	Title         string `json:"title"`
	Query         string `json:"query"`
	Depth         string `json:"depth"`
	Type          string `json:"type"`
	WalletAddress string `json:"wallet_address,omitempty"`
	IsDemo        bool   `json:"is_demo"`
	CallbackURL   string `json:"callback_url"`
}

func (p ResearchPayload) Form() FormID { return FormResearch }

type ChatPayload struct {
	FormID        FormID `json:"form-id"`
	MessageID     string `json:"message_id"`
	SessionID     string `json:"session_id"`
	Message       string `json:"message"`
	WalletAddress string `json:"wallet_address,omitempty"`
	IsDemo        bool   `json:"is_demo"`
	CallbackURL   string `json:"callback_url"`
}

func (p ChatPayload) Form() FormID { return FormChat }

// EmailPayload asks the engine to send an email. An empty To leaves the
// recipient to the engine, which resolves it from WalletAddress or ResearchID.
type EmailPayload struct {
	FormID        FormID `json:"form-id"`
	To            string `json:"to"`
	From          string `json:"from,omitempty"`
	Subject       string `json:"subject"`
	Content       string `json:"content"`
	ResearchID    string `json:"research_id,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

func (p EmailPayload) Form() FormID { return FormEmail }

func NewResearchPayload(p ResearchPayload) ResearchPayload {
	p.FormID = FormResearch
	return p
}

func NewChatPayload(p ChatPayload) ChatPayload {
	p.FormID = FormChat
	return p
}

func NewEmailPayload(p EmailPayload) EmailPayload {
	p.FormID = FormEmail
	return p
}
