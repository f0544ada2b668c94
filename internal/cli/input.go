package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/me/slotwise/pkg/model"
	"gopkg.in/yaml.v3"
)

// decodeFile reads a JSON or YAML document into v. The extension picks the
// decoder; anything that is not .json is treated as YAML.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, v)
	} else {
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadRequest(path string) (model.ScheduleRequest, error) {
	var req model.ScheduleRequest
	if err := decodeFile(path, &req); err != nil {
		return req, err
	}
	logger.Debug("loaded request", "path", path,
		"tasks", len(req.Tasks),
		"resources", len(req.Resources),
		"constraints", len(req.Constraints))
	return req, nil
}

func loadSchedule(path string) (*model.Schedule, error) {
	var s model.Schedule
	if err := decodeFile(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
