package timeutil

import "testing"

func TestYMDJulianRoundTrip(t *testing.T) {
	cases := []string{"20240101", "20240229", "20241231", "20230615"}
	for _, ymd := range cases {
		j, err := YMDToJulian(ymd)
		if err != nil {
			t.Fatalf("YMDToJulian(%s): %v", ymd, err)
		}
		back, err := JulianToYMD(j)
		if err != nil {
			t.Fatalf("JulianToYMD(%s): %v", j, err)
		}
		if back != ymd {
			t.Errorf("round trip %s -> %s -> %s, want %s", ymd, j, back, ymd)
		}
	}
}

func TestYMDToJulianKnownValues(t *testing.T) {
	got, err := YMDToJulian("20240101")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024001" {
		t.Errorf("got %s, want 2024001", got)
	}

	got, err = YMDToJulian("20241231")
	if err != nil {
		t.Fatal(err)
	}
	// 2024 is a leap year, so Dec 31 is day 366.
	if got != "2024366" {
		t.Errorf("got %s, want 2024366", got)
	}
}

func TestExpandDateKeySingleDay(t *testing.T) {
	days, err := ExpandDateKey("20240101")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0] != "20240101" {
		t.Errorf("got %v", days)
	}
}

func TestExpandDateKeyRange(t *testing.T) {
	days, err := ExpandDateKey("20240101-20240103")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"20240101", "20240102", "20240103"}
	if len(days) != len(want) {
		t.Fatalf("got %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("index %d: got %s, want %s", i, days[i], want[i])
		}
	}
}

func TestExpandDateKeyInvalidRange(t *testing.T) {
	if _, err := ExpandDateKey("20240103-20240101"); err == nil {
		t.Error("expected error for end before start")
	}
}

func TestWeekOfYear(t *testing.T) {
	cases := []struct {
		doy  int
		week int
	}{
		{1, 1},
		{7, 1},
		{8, 2},
		{365, 53},
	}
	for _, c := range cases {
		if got := WeekOfYear(c.doy); got != c.week {
			t.Errorf("WeekOfYear(%d) = %d, want %d", c.doy, got, c.week)
		}
	}
}

func TestParseTimeRangeSingle(t *testing.T) {
	r, err := ParseTimeRange("14:30")
	if err != nil {
		t.Fatal(err)
	}
	if r.StartMin != 14*60+30 || r.EndMin != r.StartMin {
		t.Errorf("got %+v", r)
	}
	if r.String() != "14:30" {
		t.Errorf("String() = %s", r.String())
	}
}

func TestParseTimeRangeSpan(t *testing.T) {
	r, err := ParseTimeRange("08:00-19:17")
	if err != nil {
		t.Fatal(err)
	}
	if r.StartMin != 8*60 || r.EndMin != 19*60+17 {
		t.Errorf("got %+v", r)
	}
	if r.String() != "08:00-19:17" {
		t.Errorf("String() = %s", r.String())
	}
	if r.DurationHours() <= 0 {
		t.Errorf("DurationHours() = %v, want positive", r.DurationHours())
	}
}

func TestParseTimeRangeInvalid(t *testing.T) {
	if _, err := ParseTimeRange("19:17-08:00"); err == nil {
		t.Error("expected error for end before start")
	}
	if _, err := ParseTimeRange("25:00"); err == nil {
		t.Error("expected error for invalid hour")
	}
}

func TestTimeRangeContainsHourWidening(t *testing.T) {
	r, err := ParseTimeRange("08:45-10:05")
	if err != nil {
		t.Fatal(err)
	}
	if !r.ContainsHour(8) {
		t.Error("expected hour 8 (start hour) to be contained")
	}
	if !r.ContainsHour(9) {
		t.Error("expected hour 9 (fully inside) to be contained")
	}
	if !r.ContainsHour(10) {
		t.Error("expected hour 10 (end hour) to be contained")
	}
	if r.ContainsHour(7) || r.ContainsHour(11) {
		t.Error("expected hours outside [8,10] to be excluded")
	}
}

func TestTimeRangeContainsMinuteExact(t *testing.T) {
	r, err := ParseTimeRange("08:45-10:05")
	if err != nil {
		t.Fatal(err)
	}
	if r.ContainsMinute(8*60 + 30) {
		t.Error("08:30 should be outside the exact range")
	}
	if !r.ContainsMinute(8 * 60 + 45) {
		t.Error("08:45 (start) should be inside")
	}
	if !r.ContainsMinute(10*60 + 5) {
		t.Error("10:05 (end) should be inside")
	}
	if r.ContainsMinute(10*60 + 6) {
		t.Error("10:06 should be outside")
	}
}

func TestExtractLocalTimestamp(t *testing.T) {
	name := "ABI-L1b-RadF-M6_G16-s20241781200.tgz"
	ts, ok := ExtractLocalTimestamp(name)
	if !ok {
		t.Fatal("expected timestamp to be extracted")
	}
	if ts.Year != 2024 || ts.DayOfYear != 178 || ts.Hour != 12 || ts.Minute != 0 {
		t.Errorf("got %+v", ts)
	}
	if ts.DayKey() != "2024178" {
		t.Errorf("DayKey() = %s, want 2024178", ts.DayKey())
	}
}

func TestExtractMemberTimestamp(t *testing.T) {
	name := "OR_ABI-L1b-RadF-M6C13_G16_s20232991200215.nc"
	ts, ok := ExtractMemberTimestamp(name)
	if !ok {
		t.Fatal("expected timestamp to be extracted")
	}
	if ts.Year != 2023 || ts.DayOfYear != 299 || ts.Hour != 12 || ts.Minute != 0 {
		t.Errorf("got %+v", ts)
	}
}

func TestExtractRemoteTimestamp(t *testing.T) {
	name := "OR_ABI-L1b-RadF-M6C14_G16_s20241781200215_e20241781209523_c20241781210007.nc"
	ts, ok := ExtractRemoteTimestamp(name)
	if !ok {
		t.Fatal("expected timestamp to be extracted")
	}
	if ts.Year != 2024 || ts.DayOfYear != 178 || ts.Hour != 12 || ts.Minute != 0 {
		t.Errorf("got %+v", ts)
	}
}

func TestExtractTimestampMalformed(t *testing.T) {
	if _, ok := ExtractLocalTimestamp("no-timestamp-here.tar.gz"); ok {
		t.Error("expected no timestamp to be found")
	}
	if _, ok := ExtractMemberTimestamp("no-timestamp-here.nc"); ok {
		t.Error("expected no timestamp to be found")
	}
	if _, ok := ExtractRemoteTimestamp("no-timestamp-here.nc"); ok {
		t.Error("expected no timestamp to be found")
	}
}

func TestParseEmbeddedTimestampBounds(t *testing.T) {
	if _, ok := ParseEmbeddedTimestamp("2024366235"); ok {
		t.Error("expected short string to be rejected")
	}
	if _, ok := ParseEmbeddedTimestamp("20243670000"); ok {
		t.Error("expected out-of-range day-of-year to be rejected")
	}
}
