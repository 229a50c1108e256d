// Package ethereum reads DAO treasury balances from an Ethereum node.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nouns-dao/nouns-onchain/business/onchain/domain"
	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/asset"
	"github.com/nouns-dao/nouns-onchain/internal/circuitbreaker"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

const (
	tracerName = "ethereum"
	meterName  = "ethereum"

	sourceETH   = "eth"
	sourceStETH = "steth"
)

// ChainClient is the subset of ethclient.Client the reader needs.
type ChainClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ ChainClient = (*ethclient.Client)(nil)

// BalanceReaderConfig holds the addresses the reader queries.
type BalanceReaderConfig struct {
	ChainID  uint64
	Executor common.Address // DAO treasury (NounsDAOExecutor)
	StETH    common.Address // Lido stETH token
	// CallTimeout bounds each RPC call. Zero leaves it to the caller's context.
	CallTimeout time.Duration
}

type readerMetrics struct {
	reads   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// BalanceReader computes the treasury balance as ETH + stETH.
type BalanceReader struct {
	config   BalanceReaderConfig
	client   ChainClient
	erc20ABI abi.ABI
	eth      *asset.Asset
	steth    *asset.Asset

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewBalanceReader creates a reader over client.
func NewBalanceReader(client ChainClient, cfg BalanceReaderConfig, log logger.LoggerInterface) (*BalanceReader, error) {
	if client == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("ethereum client is required"))
	}

	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = asset.ChainIDEthereum
	}

	r := &BalanceReader{
		config:   cfg,
		client:   client,
		erc20ABI: parsedABI,
		eth:      asset.NativeOn(chainID),
		steth:    asset.StETHAt(chainID, cfg.StETH),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("ethereum-rpc")
	r.cb = circuitbreaker.New[*big.Int](cbCfg)

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return r, nil
}

func (r *BalanceReader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &readerMetrics{}

	r.metrics.reads, err = meter.Int64Counter(
		"treasury_reads_total",
		metric.WithDescription("Total treasury balance reads"),
	)
	if err != nil {
		return err
	}

	r.metrics.errors, err = meter.Int64Counter(
		"treasury_read_errors_total",
		metric.WithDescription("Total treasury balance read errors"),
	)
	if err != nil {
		return err
	}

	r.metrics.latency, err = meter.Float64Histogram(
		"treasury_read_latency_ms",
		metric.WithDescription("Treasury balance read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ReadTreasury fetches both balances concurrently and sums them at parity.
// It returns after both reads finish; the first failure cancels the other
// and no partial value is returned.
func (r *BalanceReader) ReadTreasury(ctx context.Context) (domain.Treasury, error) {
	ctx, span := r.tracer.Start(ctx, "treasury.fetch",
		trace.WithAttributes(
			attribute.String("executor", r.config.Executor.Hex()),
			attribute.String("steth", r.config.StETH.Hex()),
		),
	)
	defer span.End()

	start := time.Now()

	var ethRaw, stethRaw *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := r.ethBalance(gctx)
		ethRaw = v
		return err
	})
	g.Go(func() error {
		v, err := r.stethBalance(gctx)
		stethRaw = v
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "treasury read failed")
		return domain.Treasury{}, err
	}

	treasury, err := domain.NewTreasury(
		asset.NewAmount(r.eth, ethRaw),
		asset.NewAmount(r.steth, stethRaw),
	)
	if err != nil {
		return domain.Treasury{}, apperror.New(apperror.CodeChainReadFailure,
			apperror.WithCause(err),
			apperror.WithContext("sum treasury balances"))
	}

	span.SetAttributes(attribute.String("total_wei", treasury.String()))
	r.logger.Debug(ctx, "treasury read",
		"eth", ethRaw.String(),
		"steth", stethRaw.String(),
		"total", treasury.String(),
		"latency_ms", time.Since(start).Milliseconds())

	return treasury, nil
}

func (r *BalanceReader) ethBalance(ctx context.Context) (*big.Int, error) {
	ctx, span := r.tracer.Start(ctx, "treasury.eth_balance")
	defer span.End()

	return r.read(ctx, span, sourceETH, func(ctx context.Context) (*big.Int, error) {
		bal, err := r.client.BalanceAt(ctx, r.config.Executor, nil)
		if err != nil {
			return nil, err
		}
		if bal == nil {
			return nil, errors.New("node returned no balance")
		}
		return bal, nil
	})
}

func (r *BalanceReader) stethBalance(ctx context.Context) (*big.Int, error) {
	ctx, span := r.tracer.Start(ctx, "treasury.steth_balance")
	defer span.End()

	callData, err := r.erc20ABI.Pack("balanceOf", r.config.Executor)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	return r.read(ctx, span, sourceStETH, func(ctx context.Context) (*big.Int, error) {
		result, err := r.client.CallContract(ctx, ethereum.CallMsg{
			To:   &r.config.StETH,
			Data: callData,
		}, nil)
		if err != nil {
			return nil, err
		}

		outputs, err := r.erc20ABI.Unpack("balanceOf", result)
		if err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		if len(outputs) != 1 {
			return nil, fmt.Errorf("unexpected output length: %d", len(outputs))
		}
		bal, ok := outputs[0].(*big.Int)
		if !ok || bal == nil {
			return nil, fmt.Errorf("unexpected output type %T", outputs[0])
		}
		return bal, nil
	})
}

// read runs fn through the circuit breaker with metrics and error mapping.
func (r *BalanceReader) read(ctx context.Context, span trace.Span, source string, fn func(context.Context) (*big.Int, error)) (*big.Int, error) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	r.metrics.reads.Add(ctx, 1, attrs)
	start := time.Now()

	if r.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.CallTimeout)
		defer cancel()
	}

	bal, err := r.cb.Execute(func() (*big.Int, error) {
		return fn(ctx)
	})

	r.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		r.metrics.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperror.New(apperror.CodeChainReadFailure,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s balance of %s", source, r.config.Executor.Hex())))
	}

	span.SetAttributes(attribute.String("balance_wei", bal.String()))
	return bal, nil
}

// Ping checks the node by reading the latest block number.
func (r *BalanceReader) Ping(ctx context.Context) error {
	if _, err := r.client.BlockNumber(ctx); err != nil {
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("block number"))
	}
	return nil
}
