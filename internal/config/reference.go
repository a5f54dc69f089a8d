package config

import (
	"time"

	"github.com/rickgao/portfolio-data/internal/model"
)

// ReferenceConfig seeds static reference data at startup. Rows already
// present in the store are left untouched.
type ReferenceConfig struct {
	Products    []ProductRef    `yaml:"products"`
	Evaluations []EvaluationRef `yaml:"evaluations"`
	Accounts    []AccountRef    `yaml:"accounts"`
}

// ProductRef declares a tradable instrument.
type ProductRef struct {
	Site   string     `yaml:"site"`
	Code   string     `yaml:"code"`
	Inst   string     `yaml:"inst"`
	Fund   string     `yaml:"fund"`
	Disp   string     `yaml:"disp"`
	Expiry *time.Time `yaml:"expiry"`
}

// EvaluationRef declares a unit conversion rule. Empty hop fields mean the
// unit is already in the reference currency for that hop.
type EvaluationRef struct {
	Site        string `yaml:"site"`
	Unit        string `yaml:"unit"`
	TickerSite  string `yaml:"ticker_site"`
	TickerCode  string `yaml:"ticker_code"`
	ConvertSite string `yaml:"convert_site"`
	ConvertCode string `yaml:"convert_code"`
}

// AccountRef declares a balance bucket display name.
type AccountRef struct {
	Site string `yaml:"site"`
	Acct string `yaml:"acct"`
	Unit string `yaml:"unit"`
	Disp string `yaml:"disp"`
}

// ProductRows converts the configured product references to model rows.
func (r ReferenceConfig) ProductRows() []model.Product {
	out := make([]model.Product, 0, len(r.Products))
	for _, p := range r.Products {
		out = append(out, model.Product{
			Site:   p.Site,
			Code:   p.Code,
			Inst:   p.Inst,
			Fund:   p.Fund,
			Disp:   p.Disp,
			Expiry: p.Expiry,
		})
	}
	return out
}

// EvaluationRows converts the configured evaluation references to model rows.
func (r ReferenceConfig) EvaluationRows() []model.Evaluation {
	out := make([]model.Evaluation, 0, len(r.Evaluations))
	for _, e := range r.Evaluations {
		out = append(out, model.Evaluation{
			Site:        e.Site,
			Unit:        e.Unit,
			TickerSite:  optional(e.TickerSite),
			TickerCode:  optional(e.TickerCode),
			ConvertSite: optional(e.ConvertSite),
			ConvertCode: optional(e.ConvertCode),
		})
	}
	return out
}

// AccountRows converts the configured account references to model rows.
func (r ReferenceConfig) AccountRows() []model.Account {
	out := make([]model.Account, 0, len(r.Accounts))
	for _, a := range r.Accounts {
		out = append(out, model.Account{
			Site: a.Site,
			Acct: model.AccountType(a.Acct),
			Unit: a.Unit,
			Disp: a.Disp,
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
