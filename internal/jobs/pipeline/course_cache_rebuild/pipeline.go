package course_cache_rebuild

import (
	"fmt"

	jobrt "github.com/studyloop/reviewquiz-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	courseID, ok := jc.PayloadInt64("lms_course_id")
	if !ok || courseID == 0 {
		jc.Fail("validate", fmt.Errorf("missing lms_course_id"))
		return nil
	}

	jc.Progress("rebuild", "Rebuilding course cache")
	if err := p.lms.RebuildCourseCache(jc.Ctx, courseID); err != nil {
		jc.RescheduleWithBackoff("rebuild", err)
		return nil
	}

	jc.Succeed(map[string]any{"lms_course_id": courseID})
	return nil
}
