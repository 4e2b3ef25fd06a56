// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package validation

import (
	"strings"
	"testing"
)

type positionFixture struct {
	VesselID  string   `validate:"required"`
	Latitude  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `validate:"omitempty,gte=-180,lte=180"`
	Quality   string   `validate:"omitempty,oneof=GOOD FAIR POOR NONE"`
}

func fptr(v float64) *float64 { return &v }

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		v := positionFixture{VesselID: "RO-001", Latitude: fptr(45.2), Longitude: fptr(28.9), Quality: "GOOD"}
		if err := ValidateStruct(&v); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		v := positionFixture{Latitude: fptr(45.2)}
		err := ValidateStruct(&v)
		if err == nil {
			t.Fatal("expected error for missing VesselID")
		}
		if len(err.Errors()) != 1 {
			t.Fatalf("got %d errors, want 1", len(err.Errors()))
		}
		fe := err.Errors()[0]
		if fe.Field() != "VesselID" || fe.Tag() != "required" {
			t.Errorf("got field=%q tag=%q", fe.Field(), fe.Tag())
		}
		if !strings.Contains(fe.Error(), "required") {
			t.Errorf("message %q lacks 'required'", fe.Error())
		}
	})

	t.Run("latitude out of range", func(t *testing.T) {
		v := positionFixture{VesselID: "RO-001", Latitude: fptr(95)}
		err := ValidateStruct(&v)
		if err == nil {
			t.Fatal("expected error for latitude 95")
		}
		fe := err.Errors()[0]
		if fe.Tag() != "lte" || fe.Param() != "90" {
			t.Errorf("got tag=%q param=%q, want lte/90", fe.Tag(), fe.Param())
		}
	})

	t.Run("multiple failures joined", func(t *testing.T) {
		v := positionFixture{Latitude: fptr(-200), Quality: "EXCELLENT"}
		err := ValidateStruct(&v)
		if err == nil {
			t.Fatal("expected errors")
		}
		if len(err.Errors()) != 3 {
			t.Errorf("got %d errors, want 3", len(err.Errors()))
		}
		if !strings.Contains(err.Error(), ";") {
			t.Errorf("combined message %q not joined with ';'", err.Error())
		}
	})

	t.Run("oneof message includes allowed values", func(t *testing.T) {
		v := positionFixture{VesselID: "RO-001", Quality: "BAD"}
		err := ValidateStruct(&v)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "must be one of") {
			t.Errorf("message %q lacks oneof translation", err.Error())
		}
	})
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned distinct instances")
	}
}
