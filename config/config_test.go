package config

import (
	"os"
	"testing"

	"github.com/blnkfinance/surveylink/model"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "surveylink.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	if _, err := tmpFile.WriteString(body); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })
	return tmpFile.Name()
}

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{}

	err := cnf.validateAndAddDefaults()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
	if cnf.ProjectName == "" {
		t.Errorf("Expected a default project name")
	}
	if cnf.Linkage.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", cnf.Linkage.Workers)
	}
	if len(cnf.Linkage.CopyFields) != len(DefaultCopyFields()) {
		t.Errorf("Expected default copy fields, got %v", cnf.Linkage.CopyFields)
	}
	if cnf.Columns.Transactions.Identity != "email" || cnf.Columns.Surveys.Time != "submitted_at" {
		t.Errorf("Expected default columns, got %+v", cnf.Columns)
	}

	cnf = Configuration{Linkage: LinkageConfig{LookbackDays: -1}}
	err = cnf.validateAndAddDefaults()
	if err == nil {
		t.Errorf("Expected negative lookback to be rejected")
	}
}

func TestLinkageConfigValidate(t *testing.T) {
	cfg := DefaultLinkageConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}

	cfg.LookbackDays = 0
	cfg.MerchantLookbackDays = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected zero lookback to be valid, got %v", err)
	}

	cfg = DefaultLinkageConfig()
	cfg.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected zero workers to be rejected")
	}

	cfg = DefaultLinkageConfig()
	cfg.CopyFields = append(cfg.CopyFields, model.FieldMapping{Source: "value", Target: ""})
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected empty copy field target to be rejected")
	}

	cfg = DefaultLinkageConfig()
	cfg.CopyFields = append(cfg.CopyFields, model.FieldMapping{Source: "basket_size", Target: "txn_value"})
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected duplicate copy field target to be rejected")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	file := writeTempConfig(t, `{
		"project_name": "Temp Project",
		"data_source": {"dns": "temp-dns"},
		"linkage": {
			"lookback_days": 3,
			"copy_fields": [{"source": "value", "target": "order_value"}]
		}
	}`)

	os.Setenv("SURVEYLINK_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("SURVEYLINK_PROJECT_NAME")
	os.Setenv("SURVEYLINK_LINKAGE_WORKERS", "4")
	defer os.Unsetenv("SURVEYLINK_LINKAGE_WORKERS")

	if err := loadConfigFromFile(file); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected DataSource.Dns to be 'temp-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
	if loadedConfig.Linkage.LookbackDays != 3 {
		t.Errorf("Expected lookback of 3 days, got %d", loadedConfig.Linkage.LookbackDays)
	}
	if loadedConfig.Linkage.MerchantLookbackDays != DEFAULT_MERCHANT_LOOKBACK_DAYS {
		t.Errorf("Expected default merchant lookback, got %d", loadedConfig.Linkage.MerchantLookbackDays)
	}
	if loadedConfig.Linkage.Workers != 4 {
		t.Errorf("Expected 4 workers from env, got %d", loadedConfig.Linkage.Workers)
	}
	if len(loadedConfig.Linkage.CopyFields) != 1 || loadedConfig.Linkage.CopyFields[0].Target != "order_value" {
		t.Errorf("Expected copy fields from file, got %v", loadedConfig.Linkage.CopyFields)
	}
}

func TestInitConfig(t *testing.T) {
	file := writeTempConfig(t, `{"project_name": "InitConfig Test", "log_level": "debug"}`)

	if err := InitConfig(file); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if loadedConfig.ProjectName != "InitConfig Test" {
		t.Errorf("Expected ProjectName to be 'InitConfig Test', got '%s'", loadedConfig.ProjectName)
	}
}

func TestInitConfigMissingFileUsesDefaults(t *testing.T) {
	if err := InitConfig("./does-not-exist.json"); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if loadedConfig.Linkage.LookbackDays != DEFAULT_LOOKBACK_DAYS {
		t.Errorf("Expected default lookback, got %d", loadedConfig.Linkage.LookbackDays)
	}
}
