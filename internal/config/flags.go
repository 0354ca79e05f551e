package config

import (
	"errors"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/sealedbid/tender-service/internal/utils"
)

// applyLDFlags fetches the static flags once. The env-derived values in cfg
// are the defaults for each variation.
func applyLDFlags(cfg *Config, sdkKey string) error {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		return err
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		return errors.New("LaunchDarkly client failed to initialize")
	}

	context := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)

	flags := []struct {
		key string
		dst *bool
	}{
		{"sendgrid_sandbox_mode", &cfg.LDFlag_SendgridSandboxMode},
		{"seed_db_with_test_data", &cfg.LDFlag_SeedDbWithTestData},
		{"cors_high_security", &cfg.LDFlag_CORSHighSecurity},
		{"award_sweep_enabled", &cfg.LDFlag_AwardSweepEnabled},
	}
	for _, f := range flags {
		v, err := ldClient.BoolVariation(f.key, context, *f.dst)
		if err != nil {
			return err
		}
		utils.Logger.Debugf("%s flag: %t", f.key, v)
		*f.dst = v
	}
	return nil
}
