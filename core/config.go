package core

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

type Config struct {
	Env    string `yaml:"env" env:"ENV" env-default:"local"`
	Listen struct {
		Host string `yaml:"host" env:"HOST" env-default:""`
		Port string `yaml:"port" env:"PORT" env-default:"3000"`
	} `yaml:"listen"`
	DalleApiKey     string        `yaml:"dalle_api_key" env:"DALLE_API_KEY" env-required:"true" env-description:"OpenAI API key used as bearer credential"`
	ApiURL          string        `yaml:"api_url" env:"DALLE_API_URL" env-default:"https://api.openai.com/v1/images/generations"`
	Model           string        `yaml:"model" env:"DALLE_MODEL" env-default:"dall-e-3"`
	ImagesDir       string        `yaml:"images_dir" env:"IMAGES_DIR" env-default:"images"`
	PublicDir       string        `yaml:"public_dir" env:"PUBLIC_DIR" env-default:"public"`
	StorageBackend  string        `yaml:"storage_backend" env:"STORAGE_BACKEND" env-default:"file"`
	GenerateTimeout time.Duration `yaml:"generate_timeout" env:"GENERATE_TIMEOUT" env-default:"120s"`
	DownloadTimeout time.Duration `yaml:"download_timeout" env:"DOWNLOAD_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Load reads the yaml file at path when it exists and applies environment
// overrides on top; without a file only the environment is used
func Load(path string) (*Config, error) {
	conf := &Config{}
	var err error
	useFile := false
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			useFile = true
		case !errors.Is(statErr, fs.ErrNotExist):
			return nil, fmt.Errorf("config: %w", statErr)
		}
	}
	if useFile {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	if err = conf.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return conf
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DalleApiKey) == "" {
		return errors.New("dalle_api_key is required")
	}
	switch c.StorageBackend {
	case StorageFile, StorageMemory:
	default:
		return fmt.Errorf("unknown storage_backend %q", c.StorageBackend)
	}
	if c.StorageBackend == StorageFile && strings.TrimSpace(c.ImagesDir) == "" {
		return errors.New("images_dir is required for file storage")
	}
	return nil
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Listen.Host, c.Listen.Port)
}
