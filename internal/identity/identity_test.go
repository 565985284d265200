package identity

import "testing"

func TestCourseKey_Deterministic(t *testing.T) {
	t.Parallel()

	a := CourseKey(12345)
	b := CourseKey(12345)
	if a != b {
		t.Errorf("expected identical keys for identical course id, got %q and %q", a, b)
	}
}

func TestFileKey_Deterministic(t *testing.T) {
	t.Parallel()

	a := FileKey(67890)
	b := FileKey(67890)
	if a != b {
		t.Errorf("expected identical keys for identical file id, got %q and %q", a, b)
	}
}

func TestChunkKey_Deterministic(t *testing.T) {
	t.Parallel()

	a := ChunkKey(67890, 3)
	b := ChunkKey(67890, 3)
	if a != b {
		t.Errorf("expected identical keys for identical chunk coordinates, got %q and %q", a, b)
	}
}

func TestKeys_DistinctAcrossClasses(t *testing.T) {
	t.Parallel()

	// the same natural value must map to different UUIDs per record class
	course := CourseKey(42)
	file := FileKey(42)
	if course == file {
		t.Errorf("course and file keys collided for id 42: %q", course)
	}
}

func TestChunkKey_DistinctPerIndex(t *testing.T) {
	t.Parallel()

	seen := make(map[string]int)
	for i := 0; i < 10; i++ {
		k := ChunkKey(100, i)
		if prev, ok := seen[k]; ok {
			t.Fatalf("chunk key for index %d collided with index %d: %q", i, prev, k)
		}
		seen[k] = i
	}
}

func TestChunkKey_DistinctPerFile(t *testing.T) {
	t.Parallel()

	if ChunkKey(100, 0) == ChunkKey(101, 0) {
		t.Error("chunk keys for different files collided at index 0")
	}
}

func TestKeys_ValidUUIDFormat(t *testing.T) {
	t.Parallel()

	for name, key := range map[string]string{
		"course": CourseKey(1),
		"file":   FileKey(1),
		"chunk":  ChunkKey(1, 0),
	} {
		if len(key) != 36 {
			t.Errorf("%s key %q is not a canonical UUID string", name, key)
		}
	}
}
