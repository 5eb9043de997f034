package domain

// LoginResult is the outcome of a successful credential check. It is either a
// full token grant or an MFA challenge, never both.
type LoginResult interface {
	loginResult()
}

// LoginTokens is the terminal outcome: credentials (and MFA, if enabled)
// checked out and tokens were issued.
type LoginTokens struct {
	Tokens TokenPair
	User   *User
}

// LoginMFARequired means the password was correct but the user has MFA
// enabled; the client must complete the challenge to get tokens.
type LoginMFARequired struct {
	Challenge MFAChallengeResponse
}

func (LoginTokens) loginResult()      {}
func (LoginMFARequired) loginResult() {}
