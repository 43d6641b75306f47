package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ClaimPolicy tunes the code formats and guard rails of the claim flows.
type ClaimPolicy struct {
	JoinCodeLength       int           `mapstructure:"joinCodeLength"`
	JoinCodeAlphabet     string        `mapstructure:"joinCodeAlphabet"`
	InvitationCodeLength int           `mapstructure:"invitationCodeLength"`
	AttemptRate          float64       `mapstructure:"attemptRate"`
	AttemptBurst         int           `mapstructure:"attemptBurst"`
	ContinuationTTL      time.Duration `mapstructure:"continuationTTL"`
}

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func DefaultClaimPolicy() ClaimPolicy {
	return ClaimPolicy{
		JoinCodeLength:       8,
		JoinCodeAlphabet:     base36Upper,
		InvitationCodeLength: 10,
		AttemptRate:          0.1,
		AttemptBurst:         5,
		ContinuationTTL:      15 * time.Minute,
	}
}

type ClaimPolicyHolder struct {
	current atomic.Value // holds ClaimPolicy
}

// NewStaticClaimPolicyHolder returns a holder that never reloads.
func NewStaticClaimPolicyHolder(policy ClaimPolicy) *ClaimPolicyHolder {
	holder := &ClaimPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewClaimPolicyHolder(log *zap.Logger) (*ClaimPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("claim")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/homeaccess/config")
	v.AddConfigPath("/etc/homeaccess")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HOMEACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultClaimPolicy()
	v.SetDefault("claim.joinCodeLength", defaults.JoinCodeLength)
	v.SetDefault("claim.joinCodeAlphabet", defaults.JoinCodeAlphabet)
	v.SetDefault("claim.invitationCodeLength", defaults.InvitationCodeLength)
	v.SetDefault("claim.attemptRate", defaults.AttemptRate)
	v.SetDefault("claim.attemptBurst", defaults.AttemptBurst)
	v.SetDefault("claim.continuationTTL", defaults.ContinuationTTL)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeClaimPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticClaimPolicyHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeClaimPolicy(v)
		if err != nil {
			log.Warn("claim policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("claim policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ClaimPolicyHolder) Get() ClaimPolicy {
	return h.current.Load().(ClaimPolicy)
}

func decodeClaimPolicy(v *viper.Viper) (ClaimPolicy, error) {
	var cfg ClaimPolicy
	if err := v.UnmarshalKey("claim", &cfg); err != nil {
		return ClaimPolicy{}, err
	}
	cfg.JoinCodeAlphabet = strings.ToUpper(cfg.JoinCodeAlphabet)
	if err := validateClaimPolicy(cfg); err != nil {
		return ClaimPolicy{}, err
	}
	return cfg, nil
}

func validateClaimPolicy(cfg ClaimPolicy) error {
	if cfg.JoinCodeLength < 6 {
		return fmt.Errorf("claim.joinCodeLength must be at least 6, got %d", cfg.JoinCodeLength)
	}
	if len(cfg.JoinCodeAlphabet) < 10 {
		return errors.New("claim.joinCodeAlphabet needs at least 10 symbols")
	}
	if cfg.InvitationCodeLength < 6 {
		return fmt.Errorf("claim.invitationCodeLength must be at least 6, got %d", cfg.InvitationCodeLength)
	}
	if cfg.AttemptRate <= 0 || cfg.AttemptBurst <= 0 {
		return errors.New("claim.attemptRate and claim.attemptBurst must be positive")
	}
	if cfg.ContinuationTTL <= 0 {
		return errors.New("claim.continuationTTL must be positive")
	}
	return nil
}
