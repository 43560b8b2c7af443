package repo

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

type Duration time.Duration

func (d *Duration) MarshalText() (text []byte, err error) {
	return []byte(time.Duration(*d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(x)
	return nil
}

func StringToTimeDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(Duration(5)) {
			return data, nil
		}

		d, err := time.ParseDuration(data.(string))
		if err != nil {
			return nil, err
		}
		return Duration(d), nil
	}
}

func (d *Duration) ToDuration() time.Duration {
	return time.Duration(*d)
}

func (d *Duration) String() string {
	return time.Duration(*d).String()
}

type Config struct {
	Chain   Chain   `mapstructure:"chain" toml:"chain"`
	Bundler Bundler `mapstructure:"bundler" toml:"bundler"`
	Sponsor Sponsor `mapstructure:"sponsor" toml:"sponsor"`
	Gas     Gas     `mapstructure:"gas" toml:"gas"`
	Session Session `mapstructure:"session" toml:"session"`
	Storage Storage `mapstructure:"storage" toml:"storage"`
	Log     Log     `mapstructure:"log" toml:"log"`
}

type Chain struct {
	RPCAddr            string   `mapstructure:"rpc_addr" toml:"rpc_addr"`
	ChainID            uint64   `mapstructure:"chainid" toml:"chainid"`
	EntryPointAddr     string   `mapstructure:"entrypoint_addr" toml:"entrypoint_addr"`
	AccountFactoryAddr string   `mapstructure:"account_factory_addr" toml:"account_factory_addr"`
	RequestTimeout     Duration `mapstructure:"request_timeout" toml:"request_timeout"`
}

type Bundler struct {
	RPCAddr             string   `mapstructure:"rpc_addr" toml:"rpc_addr"`
	SubmitRetryNumber   int      `mapstructure:"submit_retry_number" toml:"submit_retry_number"`
	SubmitRetryBaseTime Duration `mapstructure:"submit_retry_base_time" toml:"submit_retry_base_time"`
	PollInterval        Duration `mapstructure:"poll_interval" toml:"poll_interval"`
	PollTimeout         Duration `mapstructure:"poll_timeout" toml:"poll_timeout"`
	ReceiptCacheSize    int      `mapstructure:"receipt_cache_size" toml:"receipt_cache_size"`
}

type Sponsor struct {
	Enable         bool     `mapstructure:"enable" toml:"enable"`
	Mode           string   `mapstructure:"mode" toml:"mode"`
	RPCAddr        string   `mapstructure:"rpc_addr" toml:"rpc_addr"`
	PaymasterAddr  string   `mapstructure:"paymaster_addr" toml:"paymaster_addr"`
	LocalKeyPath   string   `mapstructure:"local_key_path" toml:"local_key_path"`
	ValidityWindow Duration `mapstructure:"validity_window" toml:"validity_window"`
	RequestTimeout Duration `mapstructure:"request_timeout" toml:"request_timeout"`
}

type Gas struct {
	// EstimateMargin inflates raw gas estimates by the given percent.
	// Under-estimation is rejected at settlement while over-estimation is
	// refunded, so the margin only costs deposit float.
	EstimateMargin uint64   `mapstructure:"estimate_margin" toml:"estimate_margin"`
	RetryNumber    int      `mapstructure:"retry_number" toml:"retry_number"`
	RetryBaseTime  Duration `mapstructure:"retry_base_time" toml:"retry_base_time"`
}

type Session struct {
	// AllowWildcard permits grants whose target or selector is the wildcard
	// sentinel. Wildcard grants are never a default and each one is logged.
	AllowWildcard bool `mapstructure:"allow_wildcard" toml:"allow_wildcard"`
}

type Storage struct {
	KvType string `mapstructure:"kv_type" toml:"kv_type"`
	Sync   bool   `mapstructure:"sync" toml:"sync"`
}

type Log struct {
	Level            string    `mapstructure:"level" toml:"level"`
	EnableColor      bool      `mapstructure:"enable_color" toml:"enable_color"`
	DisableTimestamp bool      `mapstructure:"disable_timestamp" toml:"disable_timestamp"`
	Module           LogModule `mapstructure:"module" toml:"module"`
}

type LogModule struct {
	APP      string `mapstructure:"app" toml:"app"`
	Builder  string `mapstructure:"builder" toml:"builder"`
	Gas      string `mapstructure:"gas" toml:"gas"`
	Session  string `mapstructure:"session" toml:"session"`
	Signer   string `mapstructure:"signer" toml:"signer"`
	Sponsor  string `mapstructure:"sponsor" toml:"sponsor"`
	Relay    string `mapstructure:"relay" toml:"relay"`
	Executor string `mapstructure:"executor" toml:"executor"`
	Chain    string `mapstructure:"chain" toml:"chain"`
	Storage  string `mapstructure:"storage" toml:"storage"`
}

func (c *Config) Bytes() ([]byte, error) {
	ret, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	return ret, nil
}

func DefaultConfig() *Config {
	return &Config{
		Chain: Chain{
			RPCAddr:            "http://127.0.0.1:8881",
			ChainID:            1356,
			EntryPointAddr:     "0x0000000000000000000000000000000000001008",
			AccountFactoryAddr: "0x0000000000000000000000000000000000001009",
			RequestTimeout:     Duration(10 * time.Second),
		},
		Bundler: Bundler{
			RPCAddr:             "http://127.0.0.1:4337",
			SubmitRetryNumber:   3,
			SubmitRetryBaseTime: Duration(500 * time.Millisecond),
			PollInterval:        Duration(2 * time.Second),
			PollTimeout:         Duration(60 * time.Second),
			ReceiptCacheSize:    256,
		},
		Sponsor: Sponsor{
			Enable:         false,
			Mode:           SponsorModeRemote,
			RPCAddr:        "http://127.0.0.1:4338",
			PaymasterAddr:  "0x000000000000000000000000000000000000100a",
			LocalKeyPath:   "",
			ValidityWindow: Duration(10 * time.Minute),
			RequestTimeout: Duration(10 * time.Second),
		},
		Gas: Gas{
			EstimateMargin: 20,
			RetryNumber:    3,
			RetryBaseTime:  Duration(500 * time.Millisecond),
		},
		Session: Session{
			AllowWildcard: false,
		},
		Storage: Storage{
			KvType: KVStorageTypeLeveldb,
			Sync:   true,
		},
		Log: Log{
			Level:            "info",
			EnableColor:      true,
			DisableTimestamp: false,
			Module: LogModule{
				APP:      "info",
				Builder:  "info",
				Gas:      "info",
				Session:  "info",
				Signer:   "info",
				Sponsor:  "info",
				Relay:    "info",
				Executor: "info",
				Chain:    "info",
				Storage:  "info",
			},
		},
	}
}
