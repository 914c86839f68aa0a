package rpc

import "github.com/tmuxagentsd/daemon/internal/apperr"

// taskUpdateFields is the explicit allow-list for task.update, per the
// router's field-whitelisting design rule: any field outside this set is
// rejected rather than silently ignored or interpolated into the store.
var taskUpdateFields = map[string]bool{
	"description": true, "input": true, "priority": true, "targetRole": true,
	"tags": true, "autoStart": true, "autoPilot": true, "autoClose": true,
	"useWorktree": true, "useMemory": true, "aiProvider": true, "aiModel": true,
	"serverOverride": true, "workingDirectoryOverride": true,
}

// laneEditFields is the explicit allow-list for kanban.editLane.
var laneEditFields = map[string]bool{
	"name": true, "serverId": true, "workingDirectory": true, "sessionName": true,
	"aiProvider": true, "aiModel": true, "contextInstructions": true,
	"defaultToggles": true, "memoryFileId": true, "memoryPath": true,
}

// checkFields rejects any key in fields not present in allowed.
func checkFields(fields map[string]any, allowed map[string]bool) error {
	for k := range fields {
		if !allowed[k] {
			return apperr.Validationf("field %q is not updatable", k)
		}
	}
	return nil
}
