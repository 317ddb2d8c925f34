// Package creds acquires, stores, and prompts for AWS credentials.
//
// Acquisition order: the mk8 config file, MK8_AWS_* environment variables,
// AWS_* environment variables (with confirmation), then interactive entry.
package creds

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lago-morph/mk8/internal/errdef"
)

const (
	// DefaultRegion is used when no region is configured anywhere.
	DefaultRegion = "us-east-1"

	fileKeyAccessKeyID     = "AWS_ACCESS_KEY_ID"
	fileKeySecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	fileKeyRegion          = "AWS_REGION"

	fileMode = 0o600
	dirMode  = 0o700
)

// Credentials is a static AWS credential set.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Complete reports whether every field needed for an API call is present.
func (c Credentials) Complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Region != ""
}

// Source identifies where credentials were acquired from.
type Source string

const (
	SourceConfigFile  Source = "config file"
	SourceMK8Env      Source = "MK8_AWS_* environment"
	SourceAWSEnv      Source = "AWS_* environment"
	SourceInteractive Source = "interactive entry"
)

// mk8Env is the MK8_AWS_* environment variable set.
type mk8Env struct {
	AccessKeyID     string `env:"MK8_AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"MK8_AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"MK8_AWS_REGION"`
}

// awsEnv is the standard AWS_* environment variable set.
type awsEnv struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION"`
}

// Manager loads and saves credentials at a fixed config file path.
type Manager struct {
	path   string
	logger *slog.Logger

	// askOne wraps survey.AskOne; replaced in tests.
	askOne func(p survey.Prompt, response any, opts ...survey.AskOpt) error
}

// NewManager constructs a Manager storing credentials at path. An empty path
// selects ~/.config/mk8.
func NewManager(logger *slog.Logger, path string) (*Manager, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "mk8")
	}
	return &Manager{path: path, logger: logger, askOne: survey.AskOne}, nil
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.path
}

// Acquire returns credentials from the highest-priority available source.
// Credentials found in the environment are saved to the config file so later
// runs do not depend on the environment.
func (m *Manager) Acquire() (Credentials, Source, error) {
	creds, err := m.loadFile()
	if err != nil {
		return Credentials{}, "", err
	}
	if creds.Complete() {
		m.logger.Debug("credentials loaded", "source", SourceConfigFile, "path", m.path)
		return creds, SourceConfigFile, nil
	}

	var mk8Vars mk8Env
	if err := env.Parse(&mk8Vars); err != nil {
		return Credentials{}, "", fmt.Errorf("parsing MK8_AWS_* environment: %w", err)
	}
	creds = withDefaultRegion(Credentials(mk8Vars))
	if creds.Complete() {
		if err := m.Save(creds); err != nil {
			return Credentials{}, "", err
		}
		m.logger.Debug("credentials loaded", "source", SourceMK8Env)
		return creds, SourceMK8Env, nil
	}

	var awsVars awsEnv
	if err := env.Parse(&awsVars); err != nil {
		return Credentials{}, "", fmt.Errorf("parsing AWS_* environment: %w", err)
	}
	creds = withDefaultRegion(Credentials(awsVars))
	if creds.Complete() {
		use, err := m.confirmEnvCredentials(creds)
		if err != nil {
			return Credentials{}, "", err
		}
		if use {
			if err := m.Save(creds); err != nil {
				return Credentials{}, "", err
			}
			m.logger.Debug("credentials loaded", "source", SourceAWSEnv)
			return creds, SourceAWSEnv, nil
		}
	}

	creds, err = m.promptCredentials(Credentials{Region: DefaultRegion})
	if err != nil {
		return Credentials{}, "", err
	}
	if err := m.Save(creds); err != nil {
		return Credentials{}, "", err
	}
	return creds, SourceInteractive, nil
}

// Update re-prompts for credentials, using any stored values as defaults,
// and returns the names of the fields that changed. Without force, existing
// complete credentials are left alone.
func (m *Manager) Update(force bool) ([]string, error) {
	current, err := m.loadFile()
	if err != nil {
		return nil, err
	}
	if current.Complete() && !force {
		overwrite := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Credentials already configured (key %s). Replace them?", Mask(current.AccessKeyID)),
		}
		if err := m.askOne(prompt, &overwrite); err != nil {
			return nil, fmt.Errorf("confirming credential update: %w", err)
		}
		if !overwrite {
			return nil, nil
		}
	}

	defaults := current
	if defaults.Region == "" {
		defaults.Region = DefaultRegion
	}
	updated, err := m.promptCredentials(defaults)
	if err != nil {
		return nil, err
	}
	if err := m.Save(updated); err != nil {
		return nil, err
	}

	var changed []string
	if updated.AccessKeyID != current.AccessKeyID {
		changed = append(changed, "access key ID")
	}
	if updated.SecretAccessKey != current.SecretAccessKey {
		changed = append(changed, "secret access key")
	}
	if updated.Region != current.Region {
		changed = append(changed, "region")
	}
	return changed, nil
}

// Stored returns whatever credentials the config file currently holds,
// without consulting the environment or prompting. A missing file yields
// empty credentials.
func (m *Manager) Stored() (Credentials, error) {
	return m.loadFile()
}

// Save writes the credentials to the config file with owner-only permissions.
func (m *Manager) Save(creds Credentials) error {
	content, err := godotenv.Marshal(map[string]string{
		fileKeyAccessKeyID:     creds.AccessKeyID,
		fileKeySecretAccessKey: creds.SecretAccessKey,
		fileKeyRegion:          creds.Region,
	})
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), dirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(content+"\n"), fileMode); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	if err := os.Chmod(m.path, fileMode); err != nil {
		return fmt.Errorf("restricting credentials file permissions: %w", err)
	}
	m.logger.Debug("credentials saved", "path", m.path)
	return nil
}

// loadFile reads credentials from the config file. A missing file yields
// empty credentials, not an error.
func (m *Manager) loadFile() (Credentials, error) {
	values, err := godotenv.Read(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, errdef.Wrap(err,
			fmt.Sprintf("reading credentials file %s", m.path),
			"Check the file is readable and in KEY=value format",
			"Delete the file and run 'mk8 config' to recreate it",
		).WithCode(errdef.ExitConfiguration)
	}
	return withDefaultRegion(Credentials{
		AccessKeyID:     values[fileKeyAccessKeyID],
		SecretAccessKey: values[fileKeySecretAccessKey],
		Region:          values[fileKeyRegion],
	}), nil
}

func (m *Manager) confirmEnvCredentials(creds Credentials) (bool, error) {
	use := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Use AWS credentials from the environment (key %s, region %s)?",
			Mask(creds.AccessKeyID), creds.Region),
		Default: true,
	}
	if err := m.askOne(prompt, &use); err != nil {
		return false, fmt.Errorf("confirming environment credentials: %w", err)
	}
	return use, nil
}

func (m *Manager) promptCredentials(defaults Credentials) (Credentials, error) {
	var creds Credentials

	accessKey := &survey.Input{Message: "AWS Access Key ID:", Default: defaults.AccessKeyID}
	if err := m.askOne(accessKey, &creds.AccessKeyID, survey.WithValidator(survey.Required)); err != nil {
		return Credentials{}, fmt.Errorf("reading access key ID: %w", err)
	}

	message := "AWS Secret Access Key:"
	var opts []survey.AskOpt
	if defaults.SecretAccessKey == "" {
		opts = append(opts, survey.WithValidator(survey.Required))
	} else {
		message = "AWS Secret Access Key (blank keeps current):"
	}
	secret := &survey.Password{Message: message}
	if err := m.askOne(secret, &creds.SecretAccessKey, opts...); err != nil {
		return Credentials{}, fmt.Errorf("reading secret access key: %w", err)
	}
	if creds.SecretAccessKey == "" {
		creds.SecretAccessKey = defaults.SecretAccessKey
	}

	region := &survey.Input{Message: "AWS Region:", Default: defaults.Region}
	if err := m.askOne(region, &creds.Region); err != nil {
		return Credentials{}, fmt.Errorf("reading region: %w", err)
	}
	creds = withDefaultRegion(creds)
	return creds, nil
}

func withDefaultRegion(creds Credentials) Credentials {
	if creds.Region == "" && creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		creds.Region = DefaultRegion
	}
	return creds
}

// Mask obscures all but the first and last four characters of a secret for
// display. Short secrets are fully masked.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	masked := make([]byte, len(secret))
	copy(masked, secret[:4])
	for i := 4; i < len(secret)-4; i++ {
		masked[i] = '*'
	}
	copy(masked[len(secret)-4:], secret[len(secret)-4:])
	return string(masked)
}
