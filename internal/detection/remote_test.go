package detection

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eugenenazirov/coin-dispenser/internal/dispenser"
)

var _ = Describe("Remote", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		source   *Remote
		img      Image
		result   Result
		err      error
		uploaded []byte
	)

	BeforeEach(func() {
		uploaded = nil
		img = Image{Data: pngBytes(), ContentType: "image/png"}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		source, err = NewRemote(server.URL+"/detect", time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(source.Close()).To(Succeed())
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = source.Detect(context.Background(), img)
	})

	respond := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			file, header, ferr := r.FormFile("file")
			Expect(ferr).NotTo(HaveOccurred())
			Expect(header.Header.Get("Content-Type")).To(Equal("image/png"))
			uploaded, _ = io.ReadAll(file)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		}
	}

	When("bills are detected", func() {
		BeforeEach(func() {
			handler = respond(http.StatusOK, `{"total_amount": 250, "bills_detected": {"one hundred": 2, "fifty": 1}, "coin_change": {}}`)
		})

		It("uploads the image and returns the amount", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(uploaded).To(Equal(img.Data))
			Expect(result.Amount).To(Equal(250))
			Expect(result.Bills).To(Equal(map[int]int{100: 2, 50: 1}))
			Expect(result.Message).To(BeEmpty())
		})
	})

	When("the total is missing", func() {
		BeforeEach(func() {
			handler = respond(http.StatusOK, `{"bills_detected": {"500": 1, "twenty": 2}}`)
		})

		It("derives it from the bills", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Amount).To(Equal(540))
		})
	})

	When("nothing is detected", func() {
		BeforeEach(func() {
			handler = respond(http.StatusOK, `{"total_amount": 0, "bills_detected": {}, "coin_change": {}, "message": "No paper bills detected"}`)
		})

		It("passes the message through", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Amount).To(BeZero())
			Expect(result.Message).To(Equal(NoBillsMessage))
		})
	})

	When("the amount is fractional", func() {
		BeforeEach(func() {
			handler = respond(http.StatusOK, `{"total_amount": 12.5}`)
		})

		It("fails with an invalid amount", func() {
			Expect(err).To(MatchError(dispenser.ErrInvalidAmount))
		})
	})

	When("the backend rejects the upload", func() {
		BeforeEach(func() {
			handler = respond(http.StatusBadRequest, `{"error": "Invalid file type. Please upload an image."}`)
		})

		It("wraps the backend error", func() {
			Expect(err).To(MatchError(ErrRemoteDetection))
			Expect(err.Error()).To(ContainSubstring("Invalid file type"))
		})
	})

	When("the backend returns garbage", func() {
		BeforeEach(func() {
			handler = respond(http.StatusOK, `not json`)
		})

		It("fails", func() {
			Expect(err).To(MatchError(ErrRemoteDetection))
		})
	})

	When("the image is unsupported", func() {
		BeforeEach(func() {
			img = Image{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"}
			handler = func(http.ResponseWriter, *http.Request) {
				defer GinkgoRecover()
				Fail("backend must not be called")
			}
		})

		It("does not call the backend", func() {
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})
})

var _ = Describe("Remote deadline", func() {
	It("keeps the context error visible", func() {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		source, err := NewRemote(server.URL+"/detect", time.Second)
		Expect(err).NotTo(HaveOccurred())
		defer source.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = source.Detect(ctx, Image{Data: pngBytes(), ContentType: "image/png"})
		Expect(err).To(MatchError(ErrRemoteDetection))
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})
})

var _ = Describe("NewRemote", func() {
	It("requires an endpoint", func() {
		_, err := NewRemote("  ", 0)
		Expect(err).To(HaveOccurred())
	})

	It("applies a default timeout", func() {
		r, err := NewRemote("http://localhost/detect", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.client.Timeout).To(Equal(defaultRemoteTimeout))
		Expect(r.Name()).To(Equal("remote"))
	})
})
