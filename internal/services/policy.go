package services

import "github.com/nsmonitor/apiserver/types"

// CanModifyUpdate covers edit, delete and submit of a project update.
func CanModifyUpdate(actor types.User, update types.ProjectUpdate, project types.Project) bool {
	return actor.IsAdminTier() ||
		update.CreatedBy == actor.ID ||
		project.ProjectManagerID == actor.ID
}

// CanReviewUpdate covers approve and reject. The update's author is not
// excluded.
func CanReviewUpdate(actor types.User, project types.Project) bool {
	return actor.IsAdminTier() || project.ProjectManagerID == actor.ID
}

func CanDeleteAttachment(actor types.User, attachment types.ProjectAttachment, project types.Project) bool {
	return actor.IsAdminTier() ||
		attachment.UploadedBy == actor.ID ||
		project.ProjectManagerID == actor.ID
}
