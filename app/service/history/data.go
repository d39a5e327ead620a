package history

type Entry struct {
	SessionID   string
	PatientID   string
	UserMessage string
	BotResponse string
}

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

type Line struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type SearchQuery struct {
	SessionID     string `json:"session_id"`
	Keyword       string `json:"search_keyword"`
	CaseSensitive bool   `json:"case_sensitive"`
	OnlyUser      bool   `json:"filter_user"`
	OnlyBot       bool   `json:"filter_bot"`
}

type Match struct {
	Date    string `json:"date"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Keyword string `json:"keyword"`
}
