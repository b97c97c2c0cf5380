package ports

import "github.com/ark-network/wabisabi/internal/core/domain"

type RepoManager interface {
	Prison() domain.PrisonRepository
	Whitelist() domain.WhitelistRepository
	CoinJoins() domain.CoinJoinRepository
	Close()
}
