package mfasdk

// Status is the discriminator carried by every provider response.
type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDenied     Status = "DENIED"
	StatusError      Status = "ERROR"
)

// Response is the provider's discriminated response object. Which optional
// fields are populated depends on the endpoint and auth type: TOTP and QR
// registrations carry QRCode/Secret, KBA challenges carry Questions.
type Response struct {
	Status          Status   `json:"status"`
	Message         string   `json:"message"`
	TxID            string   `json:"txId,omitempty"`
	AuthType        string   `json:"authType,omitempty"`
	AllowedAttempts int      `json:"allowedAttempts,omitempty"`
	QRCode          string   `json:"qrCode,omitempty"`
	Secret          string   `json:"secret,omitempty"`
	Questions       []string `json:"questions,omitempty"`
}

type challengeRequest struct {
	CustomerKey     string `json:"customerKey"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	AuthType        string `json:"authType"`
	TransactionName string `json:"transactionName,omitempty"`
}

type validateRequest struct {
	CustomerKey string            `json:"customerKey"`
	Username    string            `json:"username"`
	TxID        string            `json:"txId"`
	Token       string            `json:"token,omitempty"`
	AuthType    string            `json:"authType"`
	Answers     map[string]string `json:"answers,omitempty"`
}

// QuestionAnswer is one KBA question/answer pair supplied at registration.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RegisterRequest starts a method registration on the provider side.
type RegisterRequest struct {
	Username          string
	RegistrationType  string
	Secret            string
	OTPToken          string
	AuthenticatorType string
	QuestionAnswers   []QuestionAnswer
}

type registerRequest struct {
	CustomerKey       string           `json:"customerKey"`
	Username          string           `json:"username"`
	RegistrationType  string           `json:"registrationType"`
	Secret            string           `json:"secret,omitempty"`
	OTPToken          string           `json:"otpToken,omitempty"`
	AuthenticatorType string           `json:"authenticatorType,omitempty"`
	QuestionAnswers   []QuestionAnswer `json:"questionAnswerList,omitempty"`
}

type txRequest struct {
	CustomerKey string `json:"customerKey"`
	TxID        string `json:"txId"`
}

type googleAuthSecretRequest struct {
	CustomerKey       string `json:"customerKey"`
	Username          string `json:"username"`
	AuthenticatorName string `json:"authenticatorName"`
}

type userRequest struct {
	CustomerKey string `json:"customerKey"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// UserResult describes a provider-side user record.
type UserResult struct {
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
}

// License describes the customer's provider-side plan and user capacity.
type License struct {
	Status       Status `json:"status"`
	Message      string `json:"message"`
	Plan         string `json:"plan,omitempty"`
	UserLimit    int    `json:"userLimit,omitempty"`
	UsersCreated int    `json:"usersCreated,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}
