package ledger

import (
	"context"
	"fmt"

	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
)

// ContainerLookup resolves the container post that short posts are
// published under. The container is the latest top-level post of a fixed
// account and rotates over time.
type ContainerLookup struct {
	rpc     *RPCClient
	account string
}

func NewContainerLookup(rpc *RPCClient, account string) *ContainerLookup {
	return &ContainerLookup{rpc: rpc, account: account}
}

type accountPostsParams struct {
	Sort    string `json:"sort"`
	Account string `json:"account"`
	Limit   int    `json:"limit"`
}

type accountPost struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

func (l *ContainerLookup) LatestContainer(ctx context.Context) (string, error) {
	var posts []accountPost
	err := l.rpc.Call(ctx, "bridge.get_account_posts", accountPostsParams{
		Sort:    "posts",
		Account: l.account,
		Limit:   1,
	}, &posts)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrTransport, "Could not find the current snaps container")
	}
	if len(posts) == 0 || posts[0].Permlink == "" {
		return "", apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("no container post found for %s", l.account))
	}
	return posts[0].Permlink, nil
}
