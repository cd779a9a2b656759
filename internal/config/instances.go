package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "PANOPTO_"

var ErrConfigurationMissing = errors.New("no Panopto instance with both server name and application key is configured")

// Instance is one configured Panopto endpoint.
type Instance struct {
	ServerName     string `json:"server_name" yaml:"server_name"`
	ApplicationKey string `json:"application_key" yaml:"application_key"`

	// Slot is the 1-based position the instance was read from.
	Slot int `json:"-" yaml:"-"`
	// Overflow marks a numbered slot read past the declared server count.
	Overflow bool `json:"-" yaml:"-"`
}

func (i Instance) Complete() bool {
	return strings.TrimSpace(i.ServerName) != "" && strings.TrimSpace(i.ApplicationKey) != ""
}

// Select returns the first complete instance in slot order.
func Select(instances []Instance) (Instance, error) {
	for _, inst := range instances {
		if inst.Complete() {
			return inst, nil
		}
	}
	return Instance{}, ErrConfigurationMissing
}

// NumberedSlots converts the legacy numbered keys (<prefix>SERVER_NUMBER,
// <prefix>SERVER_NAME<n>, <prefix>APPLICATION_KEY<n>) into an ordered list.
//
// With a declared count, slots 1..count+1 are read. The slot past the count
// is kept for compatibility with existing deployments but marked Overflow so
// callers can flag it. Without a count, reading stops at the first slot
// missing both values.
func NumberedSlots(get func(string) string, prefix string) []Instance {
	countRaw := strings.TrimSpace(get(prefix + "SERVER_NUMBER"))
	count, err := strconv.Atoi(countRaw)
	hasCount := countRaw != "" && err == nil && count >= 0

	var out []Instance
	for slot := 1; ; slot++ {
		if hasCount && slot > count+1 {
			break
		}
		inst := Instance{
			ServerName:     strings.TrimSpace(get(prefix + "SERVER_NAME" + strconv.Itoa(slot))),
			ApplicationKey: strings.TrimSpace(get(prefix + "APPLICATION_KEY" + strconv.Itoa(slot))),
			Slot:           slot,
			Overflow:       hasCount && slot > count,
		}
		if !hasCount && inst.ServerName == "" && inst.ApplicationKey == "" {
			break
		}
		if inst.ServerName == "" && inst.ApplicationKey == "" {
			continue
		}
		out = append(out, inst)
	}
	return out
}

type instanceFile struct {
	Instances []Instance `yaml:"instances"`
}

// ImportYAML reads instance records from a YAML file of the form
//
//	instances:
//	  - server_name: tenant.hosted.panopto.com
//	    application_key: 00000000-0000-0000-0000-000000000000
func ImportYAML(path string) ([]Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instance file: %w", err)
	}
	var file instanceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing instance file: %w", err)
	}
	for i := range file.Instances {
		file.Instances[i].ServerName = strings.TrimSpace(file.Instances[i].ServerName)
		file.Instances[i].ApplicationKey = strings.TrimSpace(file.Instances[i].ApplicationKey)
	}
	return file.Instances, nil
}

// AddInstance appends inst and renumbers slots.
func (c *Config) AddInstance(inst Instance) {
	c.Instances = append(c.Instances, inst)
	c.renumber()
}

// RemoveInstance drops the instance in the given 1-based slot.
func (c *Config) RemoveInstance(slot int) error {
	if slot < 1 || slot > len(c.Instances) {
		return fmt.Errorf("no instance in slot %d", slot)
	}
	c.Instances = append(c.Instances[:slot-1], c.Instances[slot:]...)
	c.renumber()
	return nil
}
