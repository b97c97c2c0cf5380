package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	wabisabisdk "github.com/ark-network/wabisabi/pkg/client-sdk"
	grpcclient "github.com/ark-network/wabisabi/pkg/client-sdk/client/grpc"
	singlekeywallet "github.com/ark-network/wabisabi/pkg/client-sdk/wallet/singlekey"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var networks = map[string]*chaincfg.Params{
	"bitcoin": &chaincfg.MainNetParams,
	"testnet": &chaincfg.TestNet3Params,
	"signet":  &chaincfg.SigNetParams,
	"regtest": &chaincfg.RegressionNetParams,
}

var (
	seedFlag = cli.StringFlag{
		Name:     "seed",
		Usage:    "hex encoded seed of the wallet owning the coins",
		Required: true,
		EnvVars:  []string{"WABISABI_SEED"},
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "network to use (bitcoin, testnet, signet, regtest)",
		Value: "regtest",
	}
	taprootFlag = cli.BoolFlag{
		Name:  "taproot",
		Usage: "use taproot keys and scripts instead of segwit v0 ones",
	}
	coinsFlag = cli.StringSliceFlag{
		Name:     "coin",
		Usage:    "coin to join, as <txid>:<vout>:<amount>:<derivation index>",
		Required: true,
	}
	nextIndexFlag = cli.UintFlag{
		Name:  "next-index",
		Usage: "derivation index of the first fresh output script",
		Value: 1000,
	}
	minAmountFlag = cli.Int64Flag{
		Name:  "min-registered-amount",
		Usage: "minimum amount in sats the registered coins must sum to",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "log the progress of the client",
	}
)

var joinCommand = cli.Command{
	Name:   "join",
	Usage:  "Joins the next round with the given coins",
	Action: joinAction,
	Flags: []cli.Flag{
		&seedFlag, &networkFlag, &taprootFlag, &coinsFlag, &nextIndexFlag,
		&minAmountFlag, &verboseFlag,
	},
}

func joinAction(ctx *cli.Context) error {
	if ctx.Bool(verboseFlag.Name) {
		log.SetLevel(log.DebugLevel)
	}

	network, ok := networks[strings.ToLower(ctx.String(networkFlag.Name))]
	if !ok {
		return fmt.Errorf("unknown network %s", ctx.String(networkFlag.Name))
	}
	seed, err := hex.DecodeString(ctx.String(seedFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid seed: %s", err)
	}

	wallet, err := singlekeywallet.NewWallet(
		seed, network, ctx.Bool(taprootFlag.Name),
		uint32(ctx.Uint(nextIndexFlag.Name)),
	)
	if err != nil {
		return err
	}

	coins := make([]common.Coin, 0)
	for _, s := range ctx.StringSlice(coinsFlag.Name) {
		parts := strings.Split(s, ":")
		if len(parts) != 4 {
			return fmt.Errorf("invalid coin %s, must be <txid>:<vout>:<amount>:<index>", s)
		}
		outpoint, err := common.ParseOutpoint(strings.Join(parts[:2], ":"))
		if err != nil {
			return err
		}
		amount, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount of coin %s: %s", s, err)
		}
		index, err := strconv.ParseUint(parts[3], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid derivation index of coin %s: %s", s, err)
		}
		coin, err := wallet.Coin(*outpoint, amount, uint32(index))
		if err != nil {
			return err
		}
		coins = append(coins, *coin)
	}

	transport, err := grpcclient.NewClient(ctx.String(coordinatorUrlFlag.Name))
	if err != nil {
		return err
	}
	defer transport.Close()

	cfg := wabisabisdk.DefaultConfig
	cfg.MinRegisteredAmount = btcutil.Amount(ctx.Int64(minAmountFlag.Name))
	svc := wabisabisdk.NewCoinJoinClient(transport, wallet, cfg)
	defer svc.Close()

	go logProgress(svc.Subscribe())

	result, err := svc.StartCoinJoin(cntx, coins)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func logProgress(events <-chan wabisabisdk.ProgressEvent) {
	for e := range events {
		switch e := e.(type) {
		case wabisabisdk.RoundStarted:
			log.Infof("round %s started", e.RoundId)
		case wabisabisdk.EnteringInputRegistration:
			log.Infof("input registration until %s", e.TimeoutAt)
		case wabisabisdk.EnteringConnectionConfirmation:
			log.Infof("connection confirmation until %s", e.TimeoutAt)
		case wabisabisdk.EnteringOutputRegistration:
			log.Infof("output registration until %s", e.TimeoutAt)
		case wabisabisdk.EnteringCriticalPhase:
			log.Info("entering critical phase, don't quit")
		case wabisabisdk.LeavingCriticalPhase:
			log.Info("leaving critical phase")
		case wabisabisdk.CoinBanned:
			log.Warnf("coin %s is banned: %s", e.Coin, e.Reason)
		case wabisabisdk.RoundEnded:
			log.Infof("round %s ended, success: %t", e.RoundId, e.Success)
		}
	}
}
