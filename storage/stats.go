package storage

import (
	"fmt"
	"time"
)

// BucketStats summarizes a set of objects.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// Add accounts for one object.
func (s *BucketStats) Add(obj ObjectInfo) {
	s.TotalObjects++
	s.TotalSize += obj.Size
	if obj.LastModified.After(s.LastModified) {
		s.LastModified = obj.LastModified
	}
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// GroupByJob sums object sizes per job id for keys under StreamPrefix.
func GroupByJob(objects []ObjectInfo) map[string]int64 {
	usage := make(map[string]int64)
	for _, obj := range objects {
		rest := obj.Key
		if len(rest) <= len(StreamPrefix) || rest[:len(StreamPrefix)] != StreamPrefix {
			usage["other"] += obj.Size
			continue
		}
		rest = rest[len(StreamPrefix):]
		id := rest
		for i := 0; i < len(rest); i++ {
			if rest[i] == '/' {
				id = rest[:i]
				break
			}
		}
		usage[id] += obj.Size
	}
	return usage
}
