package metrics_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bmcpi/efiboot/api/metrics"
	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	res *bootsource.Result
	err error
}

func (f *fakeResolver) Resolve() (*bootsource.Result, error) {
	return f.res, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollector(t *testing.T) {
	resolver := &fakeResolver{res: &bootsource.Result{
		Entry:   "UEFI PXEv4",
		PXEBoot: true,
	}}
	c := metrics.NewCollector(discardLogger(), resolver)

	expected := `
# HELP efiboot_boot_source_info Boot source of the running system. Always 1.
# TYPE efiboot_boot_source_info gauge
efiboot_boot_source_info{device="",entry="UEFI PXEv4",image="",source="pxe",url=""} 1
# HELP efiboot_pxe_boot Whether the system was booted over PXE.
# TYPE efiboot_pxe_boot gauge
efiboot_pxe_boot 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"efiboot_boot_source_info", "efiboot_pxe_boot"))

	resolver.res, resolver.err = nil, fmt.Errorf("%w: BootCurrent", efi.ErrNotFound)
	assert.Equal(t, 1, testutil.CollectAndCount(c, "efiboot_resolve_errors_total"))

	expected = `
# HELP efiboot_resolve_errors_total Failed boot source resolutions by error kind.
# TYPE efiboot_resolve_errors_total counter
efiboot_resolve_errors_total{kind="not_found"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "efiboot_resolve_errors_total"))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(discardLogger(), &fakeResolver{res: &bootsource.Result{
		URL:   "http://example.com/boot.efi",
		Entry: "UEFI HTTPv4",
	}}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	metrics.New(discardLogger(), reg).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `efiboot_boot_source_info{device="",entry="UEFI HTTPv4",image="",source="network",url="http://example.com/boot.efi"} 1`)
	assert.Contains(t, w.Body.String(), "efiboot_pxe_boot 0")
}
