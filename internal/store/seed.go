package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk shape of a patient seed.
type SeedFile struct {
	Patients []SeedPatient `yaml:"patients"`
}

// SeedPatient is one patient entry in a seed file.
type SeedPatient struct {
	MRN      string `yaml:"mrn"`
	Name     string `yaml:"name"`
	Gender   string `yaml:"gender"`
	DOB      string `yaml:"dob"`
	Age      int    `yaml:"age"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	DoctorID string `yaml:"doctor_id"`
}

// ReadSeedFile parses a YAML seed file.
func ReadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, p := range seed.Patients {
		if p.MRN == "" || p.Name == "" {
			return nil, fmt.Errorf("seed patient %d: mrn and name are required", i)
		}
	}
	return &seed, nil
}

// LoadSeedFile inserts the patients from path when the store has none. It
// returns how many were inserted.
func (s *Store) LoadSeedFile(ctx context.Context, path string) (int, error) {
	seed, err := ReadSeedFile(path)
	if err != nil {
		return 0, err
	}

	n, err := s.CountPatients(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	for _, sp := range seed.Patients {
		p := &Patient{
			MRN:      sp.MRN,
			Name:     sp.Name,
			Gender:   sp.Gender,
			DOB:      sp.DOB,
			Age:      sp.Age,
			Email:    sp.Email,
			Phone:    sp.Phone,
			DoctorID: sp.DoctorID,
		}
		if err := s.CreatePatient(ctx, p); err != nil {
			return 0, fmt.Errorf("seed patient %s: %w", sp.MRN, err)
		}
	}
	return len(seed.Patients), nil
}
