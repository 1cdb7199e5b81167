package transfer

import "github.com/golang-jwt/jwt/v5"

// CustomClaims are carried by composer session tokens. LedgerToken is the
// broadcast API access token of the logged-in account.
type CustomClaims struct {
	Account     string `json:"account"`
	LedgerToken string `json:"ledger_token"`
	jwt.RegisteredClaims
}

type CreateDraftRequest struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
}

type SetTextRequest struct {
	Text string `json:"text"`
}

type SetGIFRequest struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PublishResponse struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Body     string `json:"body"`
}
