package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	o := Default()
	if err := o.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidateRejectsZeroKeySize(t *testing.T) {
	o := Default()
	o.KeySize = 0
	if err := o.Validate(); err == nil {
		t.Fatalf("expected error for zero key_size")
	}
}

func TestValidateClampsCacheSize(t *testing.T) {
	o := Default()
	o.SmallPageCacheSize = 1024
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if o.SmallPageCacheSize != minSmallPageCacheSize {
		t.Fatalf("SmallPageCacheSize = %d, want clamped to %d", o.SmallPageCacheSize, minSmallPageCacheSize)
	}
}

func TestValidateRejectsNilLevelsConfig(t *testing.T) {
	o := Default()
	o.LevelsConfig = nil
	if err := o.Validate(); err == nil {
		t.Fatalf("expected error for nil levels_config")
	}
}
