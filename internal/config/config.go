package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ark-network/wabisabi/internal/core/application"
	"github.com/ark-network/wabisabi/internal/core/domain"
	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/ark-network/wabisabi/internal/infrastructure/bitcoind"
	"github.com/ark-network/wabisabi/internal/infrastructure/db"
	watermillbus "github.com/ark-network/wabisabi/internal/infrastructure/events/watermill"
	riskapi "github.com/ark-network/wabisabi/internal/infrastructure/risk-api"
	timescheduler "github.com/ark-network/wabisabi/internal/infrastructure/scheduler/gocron"
	"github.com/ark-network/wabisabi/pkg/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedWhitelistStores = supportedType{
		"badger": {},
		"sqlite": {},
		"redis":  {},
	}
	supportedEventBuses = supportedType{
		"watermill": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedNetworks = map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"signet":  &chaincfg.SigNetParams,
		"regtest": &chaincfg.RegressionNetParams,
	}
)

type Config struct {
	Datadir   string
	Port      uint32
	AdminPort uint32
	NoTLS     bool
	LogLevel  int
	Network   *chaincfg.Params `json:"-"`

	DbType             string
	DbDir              string
	WhitelistStoreType string
	RedisUrl           string
	EventBusType       string
	SchedulerType      string

	BitcoindRpcHost string
	BitcoindRpcUser string
	BitcoindRpcPass string `json:"-"`
	TxCacheSize     int

	MinInputAmount                int64
	MaxInputAmount                int64
	MinInputCount                 int
	MaxInputCount                 int
	MaxVsizePerAlice              int64
	FeeRate                       int64
	CoordinationFeeRate           int64
	PlebsDontPayThreshold         int64
	CoordinatorScript             []byte
	InputRegistrationTimeout      time.Duration
	ConnectionConfirmationTimeout time.Duration
	OutputRegistrationTimeout     time.Duration
	TransactionSigningTimeout     time.Duration
	RoundStepInterval             time.Duration
	BlameInputRegistrationTimeout time.Duration
	AllowNotedInputRegistration   bool
	ReleaseNotedAfter             time.Duration
	ReleaseBannedAfter            time.Duration
	ReleaseLongBannedAfter        time.Duration
	WhitelistTTL                  time.Duration

	RiskApiUrl                             string
	RiskApiKey                             string `json:"-"`
	RiskFlags                              []string
	RiskApiFailOpen                        bool
	CoinVerifierStartBefore                time.Duration
	CoinVerifierRequiredConfirmations      int64
	CoinVerifierRequiredConfirmationAmount int64
	CoinVerifierItemTimeout                time.Duration
	CoinVerifierBatchSize                  int

	repo      ports.RepoManager
	chain     ports.BlockchainService
	risk      ports.RiskScoringService
	scheduler ports.SchedulerService
	eventBus  ports.EventBus
	svc       application.Service
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir                                = "DATADIR"
	Port                                   = "PORT"
	AdminPort                              = "ADMIN_PORT"
	NoTLS                                  = "NO_TLS"
	LogLevel                               = "LOG_LEVEL"
	Network                                = "NETWORK"
	DbType                                 = "DB_TYPE"
	WhitelistStoreType                     = "WHITELIST_STORE_TYPE"
	RedisUrl                               = "REDIS_URL"
	EventBusType                           = "EVENT_BUS_TYPE"
	SchedulerType                          = "SCHEDULER_TYPE"
	BitcoindRpcHost                        = "BITCOIND_RPC_HOST"
	BitcoindRpcUser                        = "BITCOIND_RPC_USER"
	BitcoindRpcPass                        = "BITCOIND_RPC_PASS"
	TxCacheSize                            = "TX_CACHE_SIZE"
	MinInputAmount                         = "MIN_INPUT_AMOUNT"
	MaxInputAmount                         = "MAX_INPUT_AMOUNT"
	MinInputCount                          = "MIN_INPUT_COUNT"
	MaxInputCount                          = "MAX_INPUT_COUNT"
	MaxVsizePerAlice                       = "MAX_VSIZE_PER_ALICE"
	FeeRate                                = "FEE_RATE"
	CoordinationFeeRate                    = "COORDINATION_FEE_RATE"
	PlebsDontPayThreshold                  = "PLEBS_DONT_PAY_THRESHOLD"
	CoordinatorScript                      = "COORDINATOR_SCRIPT"
	InputRegistrationTimeout               = "INPUT_REGISTRATION_TIMEOUT"
	ConnectionConfirmationTimeout          = "CONNECTION_CONFIRMATION_TIMEOUT"
	OutputRegistrationTimeout              = "OUTPUT_REGISTRATION_TIMEOUT"
	TransactionSigningTimeout              = "TRANSACTION_SIGNING_TIMEOUT"
	RoundStepInterval                      = "ROUND_STEP_INTERVAL"
	BlameInputRegistrationTimeout          = "BLAME_INPUT_REGISTRATION_TIMEOUT"
	AllowNotedInputRegistration            = "ALLOW_NOTED_INPUT_REGISTRATION"
	ReleaseNotedAfter                      = "RELEASE_NOTED_AFTER"
	ReleaseBannedAfter                     = "RELEASE_BANNED_AFTER"
	ReleaseLongBannedAfter                 = "RELEASE_LONG_BANNED_AFTER"
	WhitelistTTL                           = "WHITELIST_TTL"
	RiskApiUrl                             = "RISK_API_URL"
	RiskApiKey                             = "RISK_API_KEY"
	RiskFlags                              = "RISK_FLAGS"
	RiskApiFailOpen                        = "RISK_API_FAIL_OPEN"
	CoinVerifierStartBefore                = "COIN_VERIFIER_START_BEFORE"
	CoinVerifierRequiredConfirmations      = "COIN_VERIFIER_REQUIRED_CONFIRMATIONS"
	CoinVerifierRequiredConfirmationAmount = "COIN_VERIFIER_REQUIRED_CONFIRMATION_AMOUNT"
	CoinVerifierItemTimeout                = "COIN_VERIFIER_ITEM_TIMEOUT"
	CoinVerifierBatchSize                  = "COIN_VERIFIER_BATCH_SIZE"

	defaultDatadir                       = btcutil.AppDataDir("wabisabi", false)
	DefaultPort                          = 7080
	DefaultAdminPort                     = 7081
	defaultNoTLS                         = true
	defaultLogLevel                      = 4
	defaultNetwork                       = "regtest"
	defaultDbType                        = "badger"
	defaultEventBusType                  = "watermill"
	defaultSchedulerType                 = "gocron"
	defaultBitcoindRpcHost               = "localhost:18443"
	defaultTxCacheSize                   = 10_000
	defaultMinInputAmount                = 5000
	defaultMaxInputAmount                = int64(43_000 * btcutil.SatoshiPerBitcoin)
	defaultMinInputCount                 = 21
	defaultMaxInputCount                 = 100
	defaultMaxVsizePerAlice              = 255
	defaultFeeRate                       = 0 // estimated by the node
	defaultCoordinationFeeRate           = 3000
	defaultPlebsDontPayThreshold         = 1_000_000
	defaultInputRegistrationTimeout      = time.Hour
	defaultConnectionConfirmationTimeout = time.Minute
	defaultOutputRegistrationTimeout     = time.Minute
	defaultTransactionSigningTimeout     = time.Minute
	defaultRoundStepInterval             = time.Second
	defaultBlameInputRegistrationTimeout = 3 * time.Minute
	defaultReleaseNotedAfter             = 24 * time.Hour
	defaultReleaseBannedAfter            = 7 * 24 * time.Hour
	defaultReleaseLongBannedAfter        = 30 * 24 * time.Hour
	defaultWhitelistTTL                  = 31 * 24 * time.Hour
	defaultRiskFlags                     = []string{"2", "3", "8", "9", "10", "11", "12", "13", "14", "15"}
	defaultStartBefore                   = 2 * time.Minute
	defaultRequiredConfirmations         = 3
	defaultRequiredConfirmationAmount    = int64(btcutil.SatoshiPerBitcoin)
	defaultItemTimeout                   = 20 * time.Second
	defaultBatchSize                     = 100
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("WABISABI")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(AdminPort, DefaultAdminPort)
	viper.SetDefault(NoTLS, defaultNoTLS)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventBusType, defaultEventBusType)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(BitcoindRpcHost, defaultBitcoindRpcHost)
	viper.SetDefault(TxCacheSize, defaultTxCacheSize)
	viper.SetDefault(MinInputAmount, defaultMinInputAmount)
	viper.SetDefault(MaxInputAmount, defaultMaxInputAmount)
	viper.SetDefault(MinInputCount, defaultMinInputCount)
	viper.SetDefault(MaxInputCount, defaultMaxInputCount)
	viper.SetDefault(MaxVsizePerAlice, defaultMaxVsizePerAlice)
	viper.SetDefault(FeeRate, defaultFeeRate)
	viper.SetDefault(CoordinationFeeRate, defaultCoordinationFeeRate)
	viper.SetDefault(PlebsDontPayThreshold, defaultPlebsDontPayThreshold)
	viper.SetDefault(InputRegistrationTimeout, defaultInputRegistrationTimeout)
	viper.SetDefault(ConnectionConfirmationTimeout, defaultConnectionConfirmationTimeout)
	viper.SetDefault(OutputRegistrationTimeout, defaultOutputRegistrationTimeout)
	viper.SetDefault(TransactionSigningTimeout, defaultTransactionSigningTimeout)
	viper.SetDefault(RoundStepInterval, defaultRoundStepInterval)
	viper.SetDefault(BlameInputRegistrationTimeout, defaultBlameInputRegistrationTimeout)
	viper.SetDefault(ReleaseNotedAfter, defaultReleaseNotedAfter)
	viper.SetDefault(ReleaseBannedAfter, defaultReleaseBannedAfter)
	viper.SetDefault(ReleaseLongBannedAfter, defaultReleaseLongBannedAfter)
	viper.SetDefault(WhitelistTTL, defaultWhitelistTTL)
	viper.SetDefault(RiskFlags, defaultRiskFlags)
	viper.SetDefault(CoinVerifierStartBefore, defaultStartBefore)
	viper.SetDefault(CoinVerifierRequiredConfirmations, defaultRequiredConfirmations)
	viper.SetDefault(CoinVerifierRequiredConfirmationAmount, defaultRequiredConfirmationAmount)
	viper.SetDefault(CoinVerifierItemTimeout, defaultItemTimeout)
	viper.SetDefault(CoinVerifierBatchSize, defaultBatchSize)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	network, ok := supportedNetworks[strings.ToLower(viper.GetString(Network))]
	if !ok {
		return nil, fmt.Errorf(
			"unknown network %s, please select one of: mainnet | testnet | signet | regtest",
			viper.GetString(Network),
		)
	}

	var coordinatorScript []byte
	if script := viper.GetString(CoordinatorScript); len(script) > 0 {
		buf, err := hex.DecodeString(script)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinator script: %s", err)
		}
		coordinatorScript = buf
	}

	return &Config{
		Datadir:   viper.GetString(Datadir),
		Port:      viper.GetUint32(Port),
		AdminPort: viper.GetUint32(AdminPort),
		NoTLS:     viper.GetBool(NoTLS),
		LogLevel:  viper.GetInt(LogLevel),
		Network:   network,

		DbType:             viper.GetString(DbType),
		DbDir:              filepath.Join(viper.GetString(Datadir), "db"),
		WhitelistStoreType: viper.GetString(WhitelistStoreType),
		RedisUrl:           viper.GetString(RedisUrl),
		EventBusType:       viper.GetString(EventBusType),
		SchedulerType:      viper.GetString(SchedulerType),

		BitcoindRpcHost: viper.GetString(BitcoindRpcHost),
		BitcoindRpcUser: viper.GetString(BitcoindRpcUser),
		BitcoindRpcPass: viper.GetString(BitcoindRpcPass),
		TxCacheSize:     viper.GetInt(TxCacheSize),

		MinInputAmount:                viper.GetInt64(MinInputAmount),
		MaxInputAmount:                viper.GetInt64(MaxInputAmount),
		MinInputCount:                 viper.GetInt(MinInputCount),
		MaxInputCount:                 viper.GetInt(MaxInputCount),
		MaxVsizePerAlice:              viper.GetInt64(MaxVsizePerAlice),
		FeeRate:                       viper.GetInt64(FeeRate),
		CoordinationFeeRate:           viper.GetInt64(CoordinationFeeRate),
		PlebsDontPayThreshold:         viper.GetInt64(PlebsDontPayThreshold),
		CoordinatorScript:             coordinatorScript,
		InputRegistrationTimeout:      viper.GetDuration(InputRegistrationTimeout),
		ConnectionConfirmationTimeout: viper.GetDuration(ConnectionConfirmationTimeout),
		OutputRegistrationTimeout:     viper.GetDuration(OutputRegistrationTimeout),
		TransactionSigningTimeout:     viper.GetDuration(TransactionSigningTimeout),
		RoundStepInterval:             viper.GetDuration(RoundStepInterval),
		BlameInputRegistrationTimeout: viper.GetDuration(BlameInputRegistrationTimeout),
		AllowNotedInputRegistration:   viper.GetBool(AllowNotedInputRegistration),
		ReleaseNotedAfter:             viper.GetDuration(ReleaseNotedAfter),
		ReleaseBannedAfter:            viper.GetDuration(ReleaseBannedAfter),
		ReleaseLongBannedAfter:        viper.GetDuration(ReleaseLongBannedAfter),
		WhitelistTTL:                  viper.GetDuration(WhitelistTTL),

		RiskApiUrl:                             viper.GetString(RiskApiUrl),
		RiskApiKey:                             viper.GetString(RiskApiKey),
		RiskFlags:                              parseList(viper.GetStringSlice(RiskFlags)),
		RiskApiFailOpen:                        viper.GetBool(RiskApiFailOpen),
		CoinVerifierStartBefore:                viper.GetDuration(CoinVerifierStartBefore),
		CoinVerifierRequiredConfirmations:      viper.GetInt64(CoinVerifierRequiredConfirmations),
		CoinVerifierRequiredConfirmationAmount: viper.GetInt64(CoinVerifierRequiredConfirmationAmount),
		CoinVerifierItemTimeout:                viper.GetDuration(CoinVerifierItemTimeout),
		CoinVerifierBatchSize:                  viper.GetInt(CoinVerifierBatchSize),
	}, nil
}

// parseList accepts both space and comma separated lists.
func parseList(values []string) []string {
	list := make([]string, 0, len(values))
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); len(item) > 0 {
				list = append(list, item)
			}
		}
	}
	return list
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// Validate checks the config and, if valid, wires all the services the
// coordinator depends on.
func (c *Config) Validate() error {
	if err := c.validateParams(); err != nil {
		return err
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.blockchainService(); err != nil {
		return err
	}
	if err := c.riskService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.eventBusService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateParams() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if len(c.WhitelistStoreType) > 0 && !supportedWhitelistStores.supports(c.WhitelistStoreType) {
		return fmt.Errorf(
			"whitelist store type not supported, please select one of: %s",
			supportedWhitelistStores,
		)
	}
	if c.WhitelistStoreType == "redis" && len(c.RedisUrl) <= 0 {
		return fmt.Errorf("missing redis url for redis whitelist store")
	}
	if !supportedEventBuses.supports(c.EventBusType) {
		return fmt.Errorf("event bus type not supported, please select one of: %s", supportedEventBuses)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if len(c.BitcoindRpcHost) <= 0 {
		return fmt.Errorf("missing bitcoind rpc host")
	}
	if len(c.RiskApiUrl) <= 0 {
		return fmt.Errorf("missing risk api url")
	}

	if c.MinInputCount < 1 {
		return fmt.Errorf("min input count must be at least 1")
	}
	if c.MaxInputCount < c.MinInputCount {
		return fmt.Errorf("max input count must not be lower than min input count")
	}
	if c.MinInputAmount <= 0 {
		return fmt.Errorf("min input amount must be greater than 0")
	}
	if c.MaxInputAmount < c.MinInputAmount {
		return fmt.Errorf("max input amount must not be lower than min input amount")
	}
	if c.MaxVsizePerAlice <= 0 || c.MaxVsizePerAlice > common.MaxVsizeCredentialValue {
		return fmt.Errorf(
			"max vsize per alice must be in range (0, %d]", common.MaxVsizeCredentialValue,
		)
	}
	if c.FeeRate < 0 {
		return fmt.Errorf("fee rate must not be negative")
	}
	if c.CoordinationFeeRate < 0 || c.CoordinationFeeRate > 1_000_000 {
		return fmt.Errorf("coordination fee rate must be in range [0, 1000000] ppm")
	}

	timeouts := map[string]time.Duration{
		InputRegistrationTimeout:      c.InputRegistrationTimeout,
		ConnectionConfirmationTimeout: c.ConnectionConfirmationTimeout,
		OutputRegistrationTimeout:     c.OutputRegistrationTimeout,
		TransactionSigningTimeout:     c.TransactionSigningTimeout,
		BlameInputRegistrationTimeout: c.BlameInputRegistrationTimeout,
		RoundStepInterval:             c.RoundStepInterval,
		CoinVerifierItemTimeout:       c.CoinVerifierItemTimeout,
	}
	for key, timeout := range timeouts {
		if timeout <= 0 {
			return fmt.Errorf("%s must be a positive duration", strings.ToLower(key))
		}
	}
	if c.CoinVerifierBatchSize <= 0 {
		return fmt.Errorf("coin verifier batch size must be greater than 0")
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	var whitelistStoreConfig []interface{}
	switch c.WhitelistStoreType {
	case "badger":
		whitelistStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		whitelistStoreConfig = []interface{}{c.DbDir}
	case "redis":
		whitelistStoreConfig = []interface{}{c.RedisUrl}
	}

	svc, err := db.NewService(db.ServiceConfig{
		DataStoreType:        c.DbType,
		WhitelistStoreType:   c.WhitelistStoreType,
		DataStoreConfig:      dataStoreConfig,
		WhitelistStoreConfig: whitelistStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) blockchainService() error {
	svc, err := bitcoind.NewService(bitcoind.Config{
		Host:        c.BitcoindRpcHost,
		User:        c.BitcoindRpcUser,
		Pass:        c.BitcoindRpcPass,
		TxCacheSize: c.TxCacheSize,
	})
	if err != nil {
		return err
	}
	c.chain = svc
	return nil
}

func (c *Config) riskService() error {
	svc, err := riskapi.NewService(riskapi.Config{
		Url:    c.RiskApiUrl,
		ApiKey: c.RiskApiKey,
	})
	if err != nil {
		return err
	}
	c.risk = svc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) eventBusService() error {
	switch c.EventBusType {
	case "watermill":
		c.eventBus = watermillbus.NewEventBus()
	default:
		return fmt.Errorf("unknown event bus type")
	}
	return nil
}

func (c *Config) appService() error {
	if c.repo == nil || c.chain == nil || c.risk == nil ||
		c.scheduler == nil || c.eventBus == nil {
		return fmt.Errorf("config not validated")
	}

	svc, err := application.NewService(
		c.appConfig(), c.repo, c.chain, c.risk, c.scheduler, c.eventBus,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

func (c *Config) appConfig() application.Config {
	return application.Config{
		Parameters: domain.RoundParameters{
			Network: c.Network,
			FeeRate: common.FeeRate(c.FeeRate),
			CoordinationFeeRate: common.CoordinationFeeRate{
				PartsPerMillion:       c.CoordinationFeeRate,
				PlebsDontPayThreshold: btcutil.Amount(c.PlebsDontPayThreshold),
			},
			MinInputCount:                 c.MinInputCount,
			MaxInputCount:                 c.MaxInputCount,
			MinAmount:                     btcutil.Amount(c.MinInputAmount),
			MaxAmount:                     btcutil.Amount(c.MaxInputAmount),
			MaxVsizeAllocationPerAlice:    c.MaxVsizePerAlice,
			InputRegistrationTimeout:      c.InputRegistrationTimeout,
			ConnectionConfirmationTimeout: c.ConnectionConfirmationTimeout,
			OutputRegistrationTimeout:     c.OutputRegistrationTimeout,
			TransactionSigningTimeout:     c.TransactionSigningTimeout,
			CoordinatorScript:             c.CoordinatorScript,
		},
		RoundStepInterval:             c.RoundStepInterval,
		BlameInputRegistrationTimeout: c.BlameInputRegistrationTimeout,
		AllowNotedInputRegistration:   c.AllowNotedInputRegistration,
		Punishments: application.PunishmentDurations{
			Noted:      c.ReleaseNotedAfter,
			Banned:     c.ReleaseBannedAfter,
			LongBanned: c.ReleaseLongBannedAfter,
		},
		WhitelistTTL: c.WhitelistTTL,
		CoinVerifier: application.CoinVerifierConfig{
			RiskFlags:                  c.RiskFlags,
			FailOpen:                   c.RiskApiFailOpen,
			StartBefore:                c.CoinVerifierStartBefore,
			RequiredConfirmations:      c.CoinVerifierRequiredConfirmations,
			RequiredConfirmationAmount: btcutil.Amount(c.CoinVerifierRequiredConfirmationAmount),
			ItemTimeout:                c.CoinVerifierItemTimeout,
			BatchSize:                  c.CoinVerifierBatchSize,
		},
	}
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
