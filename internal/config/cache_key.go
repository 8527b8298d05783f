package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey holds the JTI of the user's only valid token.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ExamDefinitionKey holds the JSON exam definition, answer key included.
func (r *CacheKeyStruct) ExamDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// ActiveAttemptKey maps a student and exam to the attempt in progress.
func (r *CacheKeyStruct) ActiveAttemptKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:attempt", studentID, examID)
}

// AttemptAnswersKey is the autosave hash of an attempt (question index -> answer JSON).
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptSubmittedKey holds the review JSON of a handed-in attempt until
// the results worker has stored it.
func (r *CacheKeyStruct) AttemptSubmittedKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:submitted", attemptID)
}

// LoginRateKey counts login attempts per client IP.
func (r *CacheKeyStruct) LoginRateKey(ip string) string {
	return fmt.Sprintf("ratelimit:login:%s", ip)
}

var CacheKey = NewCacheKeyStruct()
