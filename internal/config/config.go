package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"bicli/internal/errors"
)

// Config represents the complete pipeline configuration
type Config struct {
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Warehouse WarehouseConfig `yaml:"warehouse" envconfig:"WAREHOUSE"`
	Inputs    InputsConfig    `yaml:"inputs" envconfig:"INPUTS"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Quality   QualityConfig   `yaml:"quality" envconfig:"QUALITY"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
}

// SourceConfig describes the relational source containing orders and production
type SourceConfig struct {
	DSN      string `yaml:"dsn" envconfig:"DSN" validate:"required"`
	SeedDemo bool   `yaml:"seed_demo" envconfig:"SEED_DEMO"`
}

// WarehouseConfig describes the destination for the kpis table
type WarehouseConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN" validate:"required"`
}

// InputsConfig holds the auxiliary file-based sources
type InputsConfig struct {
	EmployeeCSV  string `yaml:"employee_csv" envconfig:"EMPLOYEE_CSV" validate:"required"`
	SupplierXLSX string `yaml:"supplier_xlsx" envconfig:"SUPPLIER_XLSX" validate:"required"`
}

// OutputConfig holds the output directory and export file names
type OutputConfig struct {
	Dir           string `yaml:"dir" envconfig:"DIR" validate:"required"`
	CSVFile       string `yaml:"csv_file" envconfig:"CSV_FILE"`
	ExcelFile     string `yaml:"excel_file" envconfig:"EXCEL_FILE"`
	ParquetFile   string `yaml:"parquet_file" envconfig:"PARQUET_FILE"`
	DashboardFile string `yaml:"dashboard_file" envconfig:"DASHBOARD_FILE"`
	QualityFile   string `yaml:"quality_file" envconfig:"QUALITY_FILE"`
}

// QualityConfig controls data-quality enforcement
type QualityConfig struct {
	// StrictMode excludes violating rows before aggregation instead of
	// merely reporting them.
	StrictMode bool `yaml:"strict_mode" envconfig:"STRICT_MODE"`
}

// PipelineConfig controls aggregation behavior
type PipelineConfig struct {
	// ProductionJoin selects how production lots join the KPI table:
	// "site" joins site-wide totals, "site_month" scopes lots to the
	// same year-month as the order group.
	ProductionJoin string `yaml:"production_join" envconfig:"PRODUCTION_JOIN" validate:"oneof=site site_month"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load loads configuration from an optional YAML file, then applies
// environment variable overrides (prefix BI_), then validates.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// Environment variables override file values
	if err := envconfig.Process("BI", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("config validation failed", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Output.CSVFile == "" && c.Output.ExcelFile == "" && c.Output.ParquetFile == "" {
		return fmt.Errorf("at least one export file must be configured")
	}
	return nil
}

// ExportPath resolves an export file name inside the output directory
func (c *Config) ExportPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			DSN:      "source_demo.db",
			SeedDemo: true,
		},
		Warehouse: WarehouseConfig{
			DSN: "dw_demo.db",
		},
		Inputs: InputsConfig{
			EmployeeCSV:  "mitarbeiter.csv",
			SupplierXLSX: "lieferanten.xlsx",
		},
		Output: OutputConfig{
			Dir:           "outputs",
			CSVFile:       "kpi_export.csv",
			ExcelFile:     "kpi_export.xlsx",
			ParquetFile:   "kpi_export.parquet",
			DashboardFile: "dashboard.html",
			QualityFile:   "quality_report.json",
		},
		Quality: QualityConfig{
			StrictMode: false,
		},
		Pipeline: PipelineConfig{
			ProductionJoin: "site",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/bireport.log",
		},
	}
}
