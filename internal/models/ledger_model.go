package models

import "encoding/json"

const (
	OpComment        = "comment"
	OpCommentOptions = "comment_options"
)

// Operation is a named ledger operation, encoded as [name, payload].
type Operation struct {
	Name    string
	Payload interface{}
}

func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{o.Name, o.Payload})
}

type CommentOperation struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

type Beneficiary struct {
	Account string `json:"account"`
	Weight  uint16 `json:"weight"`
}

// BeneficiariesExtension is comment options extension type 0.
type BeneficiariesExtension struct {
	Beneficiaries []Beneficiary `json:"beneficiaries"`
}

func (e BeneficiariesExtension) MarshalJSON() ([]byte, error) {
	type payload struct {
		Beneficiaries []Beneficiary `json:"beneficiaries"`
	}
	return json.Marshal([]interface{}{0, payload{e.Beneficiaries}})
}

type CommentOptionsOperation struct {
	Author               string                   `json:"author"`
	Permlink             string                   `json:"permlink"`
	MaxAcceptedPayout    string                   `json:"max_accepted_payout"`
	PercentHBD           uint16                   `json:"percent_hbd"`
	AllowVotes           bool                     `json:"allow_votes"`
	AllowCurationRewards bool                     `json:"allow_curation_rewards"`
	Extensions           []BeneficiariesExtension `json:"extensions"`
}
