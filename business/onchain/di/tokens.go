// Package di contains dependency injection tokens for the on-chain context.
package di

import (
	"github.com/gin-gonic/gin"

	"github.com/nouns-dao/nouns-onchain/business/onchain/app"
	"github.com/nouns-dao/nouns-onchain/business/onchain/infra/subgraph"
	"github.com/nouns-dao/nouns-onchain/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service = di.NewToken[*app.Service]("onchain.Service")
	Router  = di.NewToken[*gin.Engine]("onchain.Router")
)

// Private dependency tokens - internal to the on-chain module
var (
	BalanceReader  = di.NewToken[app.BalanceReader]("onchain:balanceReader")
	SubgraphClient = di.NewToken[*subgraph.Client]("onchain:subgraphClient")
)

// Helper functions for type-safe access
func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}

func GetRouter(c di.ServiceRegistry) *gin.Engine {
	return di.GetToken(c, Router)
}

func GetBalanceReader(c di.ServiceRegistry) app.BalanceReader {
	return di.GetToken(c, BalanceReader)
}

func GetSubgraphClient(c di.ServiceRegistry) *subgraph.Client {
	return di.GetToken(c, SubgraphClient)
}
