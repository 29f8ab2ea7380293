package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"gopkg.in/ini.v1"
)

const DefaultProfile = "default"

// Profile is one named credential context from the Azure config file.
type Profile struct {
	Name           string
	SubscriptionID string
	TenantID       string
	ClientID       string
}

// Session is a scoped credential acquisition. Workers hold one session
// for the lifetime of a unit and must Close it on every exit path.
type Session struct {
	Profile    Profile
	Credential azcore.TokenCredential

	release func()
	once    sync.Once
}

func (s *Session) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// Provider acquires credential sessions by reference. The default
// implementation reads profiles from ~/.azure/config; tests substitute
// their own.
type Provider interface {
	Acquire(ctx context.Context, ref string) (*Session, error)
}

type profileProvider struct {
	configPath string

	// Serializes AZURE_PROFILE swaps: the env var is process-global and
	// must not be mutated by two concurrent Acquire calls.
	mu sync.Mutex
}

func NewProvider() (Provider, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("unable to get home directory: %w", err)
	}
	return &profileProvider{
		configPath: filepath.Join(homeDir, ".azure", "config"),
	}, nil
}

func NewProviderWithPath(configPath string) Provider {
	return &profileProvider{configPath: configPath}
}

func (p *profileProvider) Acquire(_ context.Context, ref string) (*Session, error) {
	if ref == "" {
		ref = DefaultProfile
	}

	cfg, err := ini.Load(p.configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load Azure config file: %w", err)
	}

	section, err := cfg.GetSection(ref)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found in Azure config: %w", ref, err)
	}

	profile := Profile{
		Name:           ref,
		SubscriptionID: section.Key("subscription").String(),
		TenantID:       section.Key("tenant").String(),
		ClientID:       section.Key("client_id").String(),
	}
	if profile.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription ID not found in profile %s", ref)
	}

	cred, err := p.buildCredential(ref, profile)
	if err != nil {
		return nil, err
	}

	return &Session{
		Profile:    profile,
		Credential: cred,
		release:    func() {},
	}, nil
}

// buildCredential selects the profile via AZURE_PROFILE for the duration
// of credential construction and restores the previous selection before
// returning, on success and failure alike.
func (p *profileProvider) buildCredential(ref string, profile Profile) (azcore.TokenCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, hadPrevious := os.LookupEnv("AZURE_PROFILE")
	if err := os.Setenv("AZURE_PROFILE", ref); err != nil {
		return nil, fmt.Errorf("failed to select Azure profile: %w", err)
	}
	defer func() {
		if hadPrevious {
			_ = os.Setenv("AZURE_PROFILE", previous)
		} else {
			_ = os.Unsetenv("AZURE_PROFILE")
		}
	}()

	cred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
		TenantID: profile.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure CLI credential: %w", err)
	}
	return cred, nil
}
