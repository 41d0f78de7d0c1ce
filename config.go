package qoptim

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/theapemachine/errnie"
)

/*
Config carries the defaults used whenever a request leaves an optimizer or
pool parameter unset. NewConfig gives the built-in values; LoadConfig layers
.env files and QOPTIM_* environment variables on top of them.
*/
type Config struct {
	// Seed for every run's random source. Zero means seed from the clock.
	Seed uint64

	Workers           int
	SchedulingTimeout time.Duration
	ResultTTL         time.Duration
	ResultCapacity    int

	AnnealTemperature    float64
	AnnealCoolingRate    float64
	AnnealIterations     int
	TunnelingProbability float64

	GAPopulation    int
	GAMutationRate  float64
	GACrossoverRate float64
	GAGenerations   int
	GAQubitSize     int

	MaxResource int
}

func NewConfig() *Config {
	return &Config{
		Workers:              4,
		SchedulingTimeout:    10 * time.Second,
		ResultTTL:            10 * time.Minute,
		ResultCapacity:       1024,
		AnnealTemperature:    100.0,
		AnnealCoolingRate:    0.995,
		AnnealIterations:     1000,
		TunnelingProbability: 0.1,
		GAPopulation:         50,
		GAMutationRate:       0.01,
		GACrossoverRate:      0.7,
		GAGenerations:        100,
		GAQubitSize:          1,
		MaxResource:          5,
	}
}

/*
LoadConfig reads the given .env files (or ./.env when none are named) into the
process environment and builds a Config from QOPTIM_* variables. A missing
default .env file is not an error; a malformed value is.
*/
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := NewConfig()
	var errs []error

	readUint(&errs, "QOPTIM_SEED", &cfg.Seed)
	readInt(&errs, "QOPTIM_WORKERS", &cfg.Workers)
	readDuration(&errs, "QOPTIM_SCHEDULING_TIMEOUT", &cfg.SchedulingTimeout)
	readDuration(&errs, "QOPTIM_RESULT_TTL", &cfg.ResultTTL)
	readInt(&errs, "QOPTIM_RESULT_CAPACITY", &cfg.ResultCapacity)
	readFloat(&errs, "QOPTIM_ANNEAL_TEMPERATURE", &cfg.AnnealTemperature)
	readFloat(&errs, "QOPTIM_ANNEAL_COOLING_RATE", &cfg.AnnealCoolingRate)
	readInt(&errs, "QOPTIM_ANNEAL_ITERATIONS", &cfg.AnnealIterations)
	readFloat(&errs, "QOPTIM_TUNNELING_PROBABILITY", &cfg.TunnelingProbability)
	readInt(&errs, "QOPTIM_GA_POPULATION", &cfg.GAPopulation)
	readFloat(&errs, "QOPTIM_GA_MUTATION_RATE", &cfg.GAMutationRate)
	readFloat(&errs, "QOPTIM_GA_CROSSOVER_RATE", &cfg.GACrossoverRate)
	readInt(&errs, "QOPTIM_GA_GENERATIONS", &cfg.GAGenerations)
	readInt(&errs, "QOPTIM_GA_QUBIT_SIZE", &cfg.GAQubitSize)
	readInt(&errs, "QOPTIM_MAX_RESOURCE", &cfg.MaxResource)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	errnie.Info("LoadConfig - workers %d, seed %d", cfg.Workers, cfg.Seed)
	return cfg, nil
}

// newRand hands out an independent random source for a single run.
func (c *Config) newRand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func readInt(errs *[]error, key string, dst *int) {
	if raw, ok := os.LookupEnv(key); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			*errs = append(*errs, invalidParam("%s=%q", key, raw))
			return
		}
		*dst = v
	}
}

func readUint(errs *[]error, key string, dst *uint64) {
	if raw, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			*errs = append(*errs, invalidParam("%s=%q", key, raw))
			return
		}
		*dst = v
	}
}

func readFloat(errs *[]error, key string, dst *float64) {
	if raw, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			*errs = append(*errs, invalidParam("%s=%q", key, raw))
			return
		}
		*dst = v
	}
}

func readDuration(errs *[]error, key string, dst *time.Duration) {
	if raw, ok := os.LookupEnv(key); ok {
		v, err := time.ParseDuration(raw)
		if err != nil {
			*errs = append(*errs, invalidParam("%s=%q", key, raw))
			return
		}
		*dst = v
	}
}
