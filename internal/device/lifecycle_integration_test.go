// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

//go:build integration

package device_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/scriptdev/scriptdev/internal/bridge"
	"github.com/scriptdev/scriptdev/internal/device"
)

func testdataPath(name string) string {
	path, err := filepath.Abs(filepath.Join("testdata", name))
	Expect(err).NotTo(HaveOccurred())
	return path
}

var _ = Describe("Device lifecycle", func() {
	var (
		ctx  context.Context
		host *fakeHost
		reg  *bridge.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		host = newFakeHost()
		reg = bridge.NewRegistry()
	})

	newCamera := func(name, class string, args ...any) *device.Camera {
		return device.NewCamera(reg, host, name, device.Settings{
			ScriptPath: testdataPath("camera.lua"),
			ClassName:  class,
			Args:       args,
		})
	}

	Describe("successful initialization", func() {
		It("moves through every state and releases everything on shutdown", func() {
			cam := newCamera("cam", "SimCamera")
			Expect(cam.State()).To(Equal(bridge.Unconstructed))

			Expect(cam.Initialize(ctx)).To(Succeed())
			Expect(cam.State()).To(Equal(bridge.Initialized))
			Expect(reg.Stats().LiveDevices).To(Equal(1))

			Expect(cam.SnapImage(ctx)).To(Succeed())
			Expect(cam.ImageBuffer()).NotTo(BeEmpty())

			cam.Shutdown(ctx)
			Expect(cam.State()).To(Equal(bridge.Released))
			Expect(cam.ImageBuffer()).To(BeNil())

			st := reg.Stats()
			Expect(st.LiveDevices).To(BeZero())
			Expect(st.LiveObjects).To(BeZero())
			Expect(st.Increments).To(Equal(st.Decrements))
			Expect(host.errors()).To(BeEmpty())
		})

		It("keeps shutdown idempotent", func() {
			cam := newCamera("cam", "SimCamera")
			Expect(cam.Initialize(ctx)).To(Succeed())

			cam.Shutdown(ctx)
			cam.Shutdown(ctx)

			Expect(cam.Shutdowns()).To(Equal(2))
			Expect(cam.State()).To(Equal(bridge.Released))
			Expect(reg.Stats().LiveDevices).To(BeZero())
		})

		It("refuses a second initialize", func() {
			cam := newCamera("cam", "SimCamera")
			Expect(cam.Initialize(ctx)).To(Succeed())
			DeferCleanup(cam.Shutdown, ctx)

			err := cam.Bridge().Initialize(ctx, bridge.Config{
				ScriptPath: testdataPath("camera.lua"),
				ClassName:  "SimCamera",
			})
			Expect(bridge.KindOf(err)).To(Equal(bridge.KindInterpreterException))
			Expect(reg.Stats().LiveDevices).To(Equal(1))
		})
	})

	DescribeTable("initialization failures shut the device down once",
		func(script, class string, want bridge.Kind) {
			cam := device.NewCamera(reg, host, "cam", device.Settings{
				ScriptPath: testdataPath(script),
				ClassName:  class,
			})

			err := cam.Initialize(ctx)
			Expect(err).To(HaveOccurred())
			Expect(bridge.KindOf(err)).To(Equal(want))
			Expect(device.HostCode(err)).To(Equal(want.HostCode()))

			Expect(cam.Shutdowns()).To(Equal(1))
			Expect(cam.State()).To(Equal(bridge.Released))
			Expect(host.errors()).To(HaveLen(1))

			st := reg.Stats()
			Expect(st.LiveDevices).To(BeZero())
			Expect(st.LiveObjects).To(BeZero())
			Expect(st.Increments).To(Equal(st.Decrements))
		},
		Entry("missing script", "absent.lua", "SimCamera", bridge.KindScriptNotFound),
		Entry("missing class", "camera.lua", "NoSuchCamera", bridge.KindClassNotFound),
		Entry("missing property", "camera.lua", "Incomplete", bridge.KindRequiredPropertyMissing),
		Entry("read not callable", "camera.lua", "NotCallable", bridge.KindInterpreterException),
	)

	Describe("shared interpreter session", func() {
		It("rejects a device asking for a different library path", func() {
			first := device.NewCamera(reg, host, "cam1", device.Settings{
				LibraryPath: testdataPath(""),
				ScriptPath:  testdataPath("camera.lua"),
				ClassName:   "SimCamera",
			})
			Expect(first.Initialize(ctx)).To(Succeed())
			DeferCleanup(first.Shutdown, ctx)

			second := device.NewCamera(reg, host, "cam2", device.Settings{
				LibraryPath: GinkgoT().TempDir(),
				ScriptPath:  testdataPath("camera.lua"),
				ClassName:   "SimCamera",
			})
			err := second.Initialize(ctx)
			Expect(bridge.KindOf(err)).To(Equal(bridge.KindLibraryPathConflict))
			Expect(second.Shutdowns()).To(Equal(1))
			Expect(reg.Stats().LiveDevices).To(Equal(1))
		})

		It("closes the session with the last device when configured to", func() {
			reg = bridge.NewRegistry(bridge.WithTeardownPolicy(bridge.CloseWhenUnused))
			cam := newCamera("cam", "SimCamera")
			Expect(cam.Initialize(ctx)).To(Succeed())
			Expect(reg.Session()).NotTo(BeNil())

			cam.Shutdown(ctx)
			Expect(reg.Session()).To(BeNil())
		})

		It("retains the session by default", func() {
			cam := newCamera("cam", "SimCamera")
			Expect(cam.Initialize(ctx)).To(Succeed())
			cam.Shutdown(ctx)

			Expect(reg.Session()).NotTo(BeNil())
			Expect(reg.Close()).To(Succeed())
			Expect(reg.Session()).To(BeNil())
		})
	})
})
