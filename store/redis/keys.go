package redis

import "github.com/Milo6x/dutyleak-app-sub004/job"

// Redis key naming conventions for engine data.
// All keys are prefixed with "dutyleak:" to avoid collisions.

const keyPrefix = "dutyleak:"

// ── Job keys ──

// jobKey returns the key for a job entity: dutyleak:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// statusKey returns the Set key indexing job IDs by status:
// dutyleak:jobs:{status}. Bootstrap reads one Set per status instead of
// scanning every job hash.
func statusKey(status job.Status) string { return keyPrefix + "jobs:" + string(status) }

// ── Schedule keys ──

// scheduleKey returns the key for a schedule entity: dutyleak:schedule:{id}
func scheduleKey(id string) string { return keyPrefix + "schedule:" + id }

// scheduleIDsKey is the Set tracking all schedule IDs for enumeration.
const scheduleIDsKey = keyPrefix + "schedule_ids"

// scheduleNamesKey maps schedule names to IDs for duplicate detection.
const scheduleNamesKey = keyPrefix + "schedule_names"
