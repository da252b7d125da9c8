package medicine

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gmsas95/medremind/internal/security"
	"gopkg.in/yaml.v3"
)

type planFile struct {
	Medicines []planMedicine `yaml:"medicines"`
}

type planMedicine struct {
	Name     string      `yaml:"name"`
	Dosage   string      `yaml:"dosage"`
	Form     string      `yaml:"form"`
	Supply   int         `yaml:"supply"`
	LowStock int         `yaml:"low_stock"`
	Disabled bool        `yaml:"disabled"`
	Notes    string      `yaml:"notes"`
	Schedule []planEntry `yaml:"schedule"`
}

type planEntry struct {
	Slot string `yaml:"slot"`
	At   string `yaml:"at"`
	Cron string `yaml:"cron"`
	Meal string `yaml:"meal"`
	Dose string `yaml:"dose"`
}

// LoadPlan parses a YAML medicine plan:
//
//	medicines:
//	  - name: Aspirin
//	    dosage: 100mg
//	    supply: 30
//	    schedule:
//	      - slot: morning
//	        meal: after_meal
//	      - at: "21:30"
func LoadPlan(r io.Reader) ([]Medicine, error) {
	var pf planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	seen := make(map[string]bool)
	meds := make([]Medicine, 0, len(pf.Medicines))
	for i, pm := range pf.Medicines {
		name := strings.TrimSpace(pm.Name)
		if name == "" {
			return nil, fmt.Errorf("medicine #%d: name is required", i+1)
		}
		if err := security.ValidateField("medicine name", name); err != nil {
			return nil, fmt.Errorf("medicine #%d: %w", i+1, err)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("medicine %s listed twice", name)
		}
		seen[strings.ToLower(name)] = true

		m := Medicine{
			Name:              name,
			Dosage:            pm.Dosage,
			Form:              pm.Form,
			CurrentSupply:     pm.Supply,
			LowStockThreshold: pm.LowStock,
			Enabled:           !pm.Disabled,
			Notes:             pm.Notes,
		}
		for _, pe := range pm.Schedule {
			e := Entry{
				TimeOfDay:  TimeOfDay(strings.ToUpper(pe.Slot)),
				At:         pe.At,
				Cron:       pe.Cron,
				MealTiming: MealTiming(strings.ToUpper(pe.Meal)),
				Dose:       pe.Dose,
			}
			if !e.MealTiming.Valid() {
				return nil, fmt.Errorf("medicine %s: unknown meal timing %q", name, pe.Meal)
			}
			if _, err := e.Spec(DefaultSlots()); err != nil {
				return nil, fmt.Errorf("medicine %s: %w", name, err)
			}
			m.Schedules = append(m.Schedules, e)
		}
		meds = append(meds, m)
	}
	return meds, nil
}

// LoadPlanFile reads a plan from disk
func LoadPlanFile(path string) ([]Medicine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan: %w", err)
	}
	defer f.Close()
	return LoadPlan(f)
}
